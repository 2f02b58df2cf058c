/*
MIT License

Copyright (c) 2024 Norihiro Seto

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package spot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

const (
	spotInstanceActionPath   = "spot/instance-action"
	targetLifecycleStatePath = "autoscaling/target-lifecycle-state"
)

// InstanceAction is the pending spot interruption action of the instance.
type InstanceAction struct {
	Action string    `json:"action"`
	Time   time.Time `json:"time"`
}

// MetadataClient reads termination signals from the instance metadata service.
type MetadataClient interface {
	// InstanceAction returns nil when no interruption is scheduled.
	InstanceAction(ctx context.Context) (*InstanceAction, error)
	// TargetLifecycleState returns LifecycleUnknown when the instance is not
	// part of an Auto Scaling group.
	TargetLifecycleState(ctx context.Context) (LifecycleState, error)
}

// IMDSClient implements MetadataClient with IMDSv2. Session tokens are
// acquired and cached by the SDK client.
type IMDSClient struct {
	client *imds.Client
}

var _ MetadataClient = &IMDSClient{}

// NewMetadataClient returns an IMDSClient. An empty endpoint selects the
// default IMDS address.
func NewMetadataClient(endpoint string) *IMDSClient {
	return &IMDSClient{
		client: imds.New(imds.Options{
			Endpoint: endpoint,
			Retryer:  aws.NopRetryer{},
		}),
	}
}

func (c *IMDSClient) InstanceAction(ctx context.Context) (*InstanceAction, error) {
	body, err := c.get(ctx, spotInstanceActionPath)
	if err != nil || body == nil {
		return nil, err
	}
	action := &InstanceAction{}
	if err := json.Unmarshal(body, action); err != nil {
		return nil, fmt.Errorf("failed to decode instance action: %w", err)
	}
	return action, nil
}

func (c *IMDSClient) TargetLifecycleState(ctx context.Context) (LifecycleState, error) {
	body, err := c.get(ctx, targetLifecycleStatePath)
	if err != nil || body == nil {
		return LifecycleUnknown, err
	}
	return ParseLifecycleState(string(body)), nil
}

// get returns the metadata at path, or nil if IMDS answers 404.
func (c *IMDSClient) get(ctx context.Context, path string) ([]byte, error) {
	out, err := c.client.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		var respErr *smithyhttp.ResponseError
		if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get metadata %s: %w", path, err)
	}
	defer out.Content.Close()

	body, err := io.ReadAll(out.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata %s: %w", path, err)
	}
	return body, nil
}
