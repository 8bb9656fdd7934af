package testsCommon

import (
	"sync"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
)

// NotifierStub -
type NotifierStub struct {
	mut    sync.Mutex
	events []common.Event
}

// Notify -
func (stub *NotifierStub) Notify(event common.Event) {
	stub.mut.Lock()
	stub.events = append(stub.events, event)
	stub.mut.Unlock()
}

// Events returns the received events of the provided type
func (stub *NotifierStub) Events(eventType common.EventType) []common.Event {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	out := make([]common.Event, 0)
	for _, event := range stub.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}

	return out
}

// IsInterfaceNil -
func (stub *NotifierStub) IsInterfaceNil() bool {
	return stub == nil
}
