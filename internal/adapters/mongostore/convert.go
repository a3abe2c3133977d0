package mongostore

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dkeye/Cast/internal/core"
)

// toBSON orders keys so writes are deterministic. Reserved keys are dropped.
func toBSON(data map[string]any) bson.D {
	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.HasPrefix(k, "_") || strings.HasPrefix(k, "$") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, 0, len(keys)+4)
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: data[k]})
	}
	return out
}

func toDocument(raw bson.M) core.Document {
	d := core.Document{Data: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case fieldID:
			d.ID, _ = v.(string)
		case fieldCreated:
			d.CreateTime = nanos(v)
		case fieldUpdated:
			d.UpdateTime = nanos(v)
		case fieldParent:
		default:
			d.Data[k] = normalize(v)
		}
	}
	return d
}

func nanos(v any) time.Time {
	switch n := v.(type) {
	case int64:
		return time.Unix(0, n)
	case int32:
		return time.Unix(0, int64(n))
	case primitive.DateTime:
		return n.Time()
	}
	return time.Time{}
}

// normalize strips driver types so callers see plain Go values.
func normalize(v any) any {
	switch x := v.(type) {
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case int32:
		return int64(x)
	case primitive.DateTime:
		return x.Time()
	}
	return v
}
