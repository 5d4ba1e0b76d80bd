package instrumentation

import (
	"fmt"
	"reflect"

	"github.com/willibrandon/revdb/pkg/revdb"
)

// Choose records which of n candidates a scheduling decision picked, for
// example the goroutine woken next or the worker given a job. While
// replaying pick is not called and the recorded choice is returned.
func Choose(s *revdb.Session, n int, pick func() int) int {
	v := int(revdb.EmitAndBind(s, nil, func() int32 { return int32(pick()) }))
	checkRange(v, n)
	return v
}

// Select is reflect.Select with a recorded choice. While recording the
// runtime picks among the ready cases and the chosen index is logged. While
// replaying only the logged case is offered to reflect.Select, so the same
// case wins, blocking until it is ready.
func Select(s *revdb.Session, cases []reflect.SelectCase) (chosen int, recv reflect.Value, recvOK bool) {
	if !s.Replaying() {
		chosen, recv, recvOK = reflect.Select(cases)
		revdb.EmitValue(s, int32(chosen))
		return chosen, recv, recvOK
	}

	chosen = int(revdb.EmitAndBind(s, nil, func() int32 { return 0 }))
	checkRange(chosen, len(cases))
	_, recv, recvOK = reflect.Select([]reflect.SelectCase{cases[chosen]})
	return chosen, recv, recvOK
}

// GoroutineOrder records the order in which ids finished or arrived, as seen
// by a collector that receives from several goroutines. While replaying the
// recorded order is returned and observe is not called.
func GoroutineOrder(s *revdb.Session, n int, observe func() []int) []int {
	order := make([]int, n)
	var live []int
	if !s.Replaying() {
		live = observe()
		if len(live) != n {
			panic(fmt.Sprintf("instrumentation: observed %d goroutines, expected %d", len(live), n))
		}
	}
	for i := range order {
		order[i] = int(revdb.EmitAndBind(s, nil, func() int32 { return int32(live[i]) }))
	}
	return order
}

func checkRange(v, n int) {
	if v < 0 || v >= n {
		panic(divergence("choice", v, n))
	}
}

func divergence(what string, got, limit int) error {
	return fmt.Errorf("%w: %s %d, limit %d", revdb.ErrReplayDivergence, what, got, limit)
}
