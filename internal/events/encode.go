package events

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode renders an event as the JSON form of a google.protobuf.Struct so
// downstream consumers can decode it with any protobuf runtime. Ids, amounts
// and the clock are written as decimal strings, the protobuf JSON form of
// int64, because Struct numbers are doubles and lose precision above 2^53.
func Encode(e Event) ([]byte, error) {
	fields := map[string]any{
		"id":   e.ID,
		"type": string(e.Type),
	}
	if e.BillID != "" {
		fields["bill_id"] = e.BillID
	}
	if e.Account != "" {
		fields["account"] = e.Account
	}
	for name, v := range map[string]int64{
		"split_id":   e.SplitID,
		"payment_id": e.PaymentID,
		"refund_id":  e.RefundID,
		"amount":     e.Amount,
		"clock":      e.Clock,
	} {
		if v != 0 {
			fields[name] = strconv.FormatInt(v, 10)
		}
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build event struct: %w", err)
	}
	return protojson.Marshal(s)
}

// Decode parses the output of Encode.
func Decode(data []byte) (Event, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	f := s.GetFields()
	var bad error
	num := func(name string) int64 {
		v, ok := f[name]
		if !ok {
			return 0
		}
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); isNum {
			return int64(v.GetNumberValue())
		}
		n, err := strconv.ParseInt(v.GetStringValue(), 10, 64)
		if err != nil && bad == nil {
			bad = fmt.Errorf("decode event: %s: %w", name, err)
		}
		return n
	}

	e := Event{
		ID:        f["id"].GetStringValue(),
		Type:      Type(f["type"].GetStringValue()),
		BillID:    f["bill_id"].GetStringValue(),
		Account:   f["account"].GetStringValue(),
		SplitID:   num("split_id"),
		PaymentID: num("payment_id"),
		RefundID:  num("refund_id"),
		Amount:    num("amount"),
		Clock:     num("clock"),
	}
	if bad != nil {
		return Event{}, bad
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return e, nil
}
