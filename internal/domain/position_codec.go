package domain

import (
	"encoding/json"
	"fmt"

	"stocktracker/internal/aggregate"
)

// PositionEventCodec stores position events as JSON keyed by event type
type PositionEventCodec struct{}

func (PositionEventCodec) Encode(e PositionEvent) ([]byte, error) {
	out, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.EventType(), err)
	}
	return out, nil
}

func (PositionEventCodec) Decode(eventType string, data []byte) (PositionEvent, error) {
	switch eventType {
	case EventTypePositionOpened:
		return decodeInto[PositionOpened](eventType, data)
	case EventTypeSharesBought:
		return decodeInto[SharesBought](eventType, data)
	case EventTypeSharesSold:
		return decodeInto[SharesSold](eventType, data)
	case EventTypeStopPriceSet:
		return decodeInto[StopPriceSet](eventType, data)
	case EventTypePositionDeleted:
		return decodeInto[PositionDeleted](eventType, data)
	}
	return nil, &aggregate.ReplayError{EventType: eventType}
}

func decodeInto[T PositionEvent](eventType string, data []byte) (PositionEvent, error) {
	var e T
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}
	return e, nil
}
