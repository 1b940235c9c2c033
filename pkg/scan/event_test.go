package scan_test

import (
	"time"

	"github.com/macropower/skan/pkg/scan"
)

// collectEventsWithTimeout collects up to maxEvents from the channel with a timeout
func collectEventsWithTimeout(eventCh <-chan scan.Event, maxEvents int, timeout time.Duration) []scan.Event {
	var events []scan.Event
	timeoutTimer := time.After(timeout)

	for len(events) < maxEvents {
		select {
		case event := <-eventCh:
			events = append(events, event)
		case <-timeoutTimer:
			return events
		}
	}

	return events
}
