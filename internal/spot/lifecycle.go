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

import "strings"

// LifecycleState is the target lifecycle state of the instance in its
// Auto Scaling group.
type LifecycleState string

const (
	LifecyclePending            LifecycleState = "Pending"
	LifecyclePendingWait        LifecycleState = "Pending:Wait"
	LifecyclePendingProceed     LifecycleState = "Pending:Proceed"
	LifecycleInService          LifecycleState = "InService"
	LifecycleEnteringStandby    LifecycleState = "EnteringStandby"
	LifecycleStandby            LifecycleState = "Standby"
	LifecycleTerminating        LifecycleState = "Terminating"
	LifecycleTerminatingWait    LifecycleState = "Terminating:Wait"
	LifecycleTerminatingProceed LifecycleState = "Terminating:Proceed"
	LifecycleTerminated         LifecycleState = "Terminated"
	LifecycleDetaching          LifecycleState = "Detaching"
	LifecycleDetached           LifecycleState = "Detached"
	LifecycleUnknown            LifecycleState = "unknown"
)

var lifecycleStates = []LifecycleState{
	LifecyclePending, LifecyclePendingWait, LifecyclePendingProceed, LifecycleInService,
	LifecycleEnteringStandby, LifecycleStandby, LifecycleTerminating, LifecycleTerminatingWait,
	LifecycleTerminatingProceed, LifecycleTerminated, LifecycleDetaching, LifecycleDetached,
}

// ParseLifecycleState returns the state named s, or LifecycleUnknown.
func ParseLifecycleState(s string) LifecycleState {
	s = strings.TrimSpace(s)
	for _, state := range lifecycleStates {
		if string(state) == s {
			return state
		}
	}
	return LifecycleUnknown
}

// IsTerminating returns true for the states in which the instance is about to go away.
func (s LifecycleState) IsTerminating() bool {
	switch s {
	case LifecycleTerminating, LifecycleTerminatingWait, LifecycleTerminatingProceed, LifecycleTerminated:
		return true
	}
	return false
}
