/*
MIT License

Copyright (c) 2019-2024 Norihiro Seto

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
package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateNodeName(t *testing.T) {
	tests := []struct {
		name     string
		nodeName string
		wantErr  bool
	}{
		{name: "Empty", nodeName: "", wantErr: true},
		{name: "Valid", nodeName: "ip-10-0-1-23.ec2.internal", wantErr: false},
		{name: "ValidSingleChar", nodeName: "a", wantErr: false},
		{name: "ValidWithNumbers", nodeName: "node123", wantErr: false},
		{name: "InvalidUnderscore", nodeName: "node_1", wantErr: true},
		{name: "InvalidStartWithHyphen", nodeName: "-node", wantErr: true},
		{name: "InvalidEndWithDot", nodeName: "node.", wantErr: true},
		{name: "InvalidUpperCase", nodeName: "Node", wantErr: true},
		{name: "InvalidDoubleDot", nodeName: "node..internal", wantErr: true},
		{name: "TooLong", nodeName: strings.Repeat("a", 254), wantErr: true},
		{name: "MaxLength", nodeName: strings.Repeat("a", 253), wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNodeName(tt.nodeName)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNodeName_ErrorMessages(t *testing.T) {
	err := ValidateNodeName("")
	assert.Equal(t, "node name cannot be empty", err.Error())

	err = ValidateNodeName("Node_1")
	assert.Equal(t, "invalid node name format: Node_1", err.Error())

	err = ValidateNodeName(strings.Repeat("a", 300))
	assert.Equal(t, "node name too long: 300 characters", err.Error())
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "Empty", url: "", wantErr: true},
		{name: "HTTP", url: "http://169.254.169.254", wantErr: false},
		{name: "HTTPSWithPath", url: "https://example.com/openid/v1/jwks", wantErr: false},
		{name: "NoScheme", url: "example.com/jwks", wantErr: true},
		{name: "OtherScheme", url: "ftp://example.com", wantErr: true},
		{name: "NoHost", url: "https:///jwks", wantErr: true},
		{name: "Unparsable", url: "http://[::1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBindAddress(t *testing.T) {
	assert.NoError(t, ValidateBindAddress(":8080"))
	assert.NoError(t, ValidateBindAddress("127.0.0.1:9090"))
	assert.Error(t, ValidateBindAddress("8080"))
	assert.Error(t, ValidateBindAddress(""))
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration("interval", time.Second))
	assert.EqualError(t, ValidatePositiveDuration("interval", 0), "invalid interval: 0s (must be positive)")
	assert.Error(t, ValidatePositiveDuration("timeout", -time.Second))
}

func TestValidateDelays(t *testing.T) {
	assert.NoError(t, ValidateDelays("eviction delays", nil))
	assert.NoError(t, ValidateDelays("eviction delays", []time.Duration{0, time.Second}))
	assert.EqualError(t,
		ValidateDelays("eviction delays", []time.Duration{time.Second, -time.Second}),
		"invalid eviction delays: delay #1 is negative: -1s")
}
