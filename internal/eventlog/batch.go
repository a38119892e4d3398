package eventlog

import (
	"bytes"
	"encoding/json"
	"time"
)

// EncodeBatch serializes events as newline-delimited compact JSON records,
// one per line, in the given order. The wall-clock t_utc field is
// materialized here, at serialization time; t_mono remains the only
// timestamp the pipeline itself trusts. This is the exact byte layout the
// segment writer pads and encrypts, and the layout the verifier decrypts
// back into to check against the original record count.
func EncodeBatch(events []Event) ([]byte, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var buf bytes.Buffer
	for _, e := range events {
		b, err := withUTC(e, now).MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// withUTC returns a copy of e with t_utc set, or e unchanged if it already
// carries one.
func withUTC(e Event, ts string) Event {
	switch v := e.(type) {
	case Key:
		if v.TUTC == "" {
			v.TUTC = ts
		}
		return v
	case Mouse:
		if v.TUTC == "" {
			v.TUTC = ts
		}
		return v
	case Clipboard:
		if v.TUTC == "" {
			v.TUTC = ts
		}
		return v
	case Command:
		if v.TUTC == "" {
			v.TUTC = ts
		}
		return v
	case Focus:
		if v.TUTC == "" {
			v.TUTC = ts
		}
		return v
	case Anomaly:
		if v.TUTC == "" {
			v.TUTC = ts
		}
		return v
	default:
		return e
	}
}

// DecodeBatch splits newline-delimited JSON records back into generic maps.
// It does not reconstruct concrete Event types — verification only needs to
// confirm the plaintext round-trips and count matches, not re-typed events.
func DecodeBatch(data []byte) ([]map[string]any, error) {
	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		line = bytes.TrimRight(line, "\x00")
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
