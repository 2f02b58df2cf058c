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

package kube

import (
	"errors"
	"fmt"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ClusterAPIError is returned when the Kubernetes API answers a call with a
// non-success status.
type ClusterAPIError struct {
	Method     string
	Path       string
	StatusCode int
	Err        error
}

func (e *ClusterAPIError) Error() string {
	return fmt.Sprintf("call %s %s returned status=%d", e.Method, e.Path, e.StatusCode)
}

func (e *ClusterAPIError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a ClusterAPIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *ClusterAPIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return apierrors.IsNotFound(err)
}

// wrapAPIError converts err into a *ClusterAPIError when it carries an HTTP
// status. Transport errors keep their cause and get the call prepended.
func wrapAPIError(method, path string, err error) error {
	if err == nil {
		return nil
	}
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		if code := int(status.Status().Code); code != 0 {
			return &ClusterAPIError{Method: method, Path: path, StatusCode: code, Err: err}
		}
	}
	return fmt.Errorf("call %s %s failed: %w", method, path, err)
}
