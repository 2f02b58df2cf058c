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

package cleanup

import (
	"github.com/norseto/kube-spot-operator/pkg/kube"
)

// SelectDeletions returns a deletion decision for every node that is not
// ready and tainted unschedulable. The executioner is the first ready node
// after the candidate in fleet order, or failing that the first ready node
// before it scanning backward. Candidates without any ready node are skipped.
func SelectDeletions(fleet []kube.Node) []kube.ScheduledNodeDelete {
	var decisions []kube.ScheduledNodeDelete
	for i, n := range fleet {
		if !n.IsUnschedulableCandidate() {
			continue
		}
		if executioner, ok := findExecutioner(fleet, i); ok {
			decisions = append(decisions, kube.ScheduledNodeDelete{NodeName: n.Name, ExecutionerNode: executioner})
		}
	}
	return decisions
}

func findExecutioner(fleet []kube.Node, index int) (string, bool) {
	for i := index + 1; i < len(fleet); i++ {
		if fleet[i].IsReady() {
			return fleet[i].Name, true
		}
	}
	for i := index - 1; i >= 0; i-- {
		if fleet[i].IsReady() {
			return fleet[i].Name, true
		}
	}
	return "", false
}
