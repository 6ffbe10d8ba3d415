package pure

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// members holds JSON object members a type does not model. They are written
// back unchanged so a PUT never drops data this tool does not understand.
type members map[string]json.RawMessage

func (m members) clone() members {
	if m == nil {
		return nil
	}
	out := make(members, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var knownKeysCache sync.Map // reflect.Type -> []string

// knownKeys lists the JSON names of t's exported, tagged fields.
func knownKeys(t reflect.Type) []string {
	if v, ok := knownKeysCache.Load(t); ok {
		return v.([]string)
	}
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		keys = append(keys, name)
	}
	knownKeysCache.Store(t, keys)
	return keys
}

// splitMembers decodes data into v (a pointer to a struct without custom
// JSON methods) and returns the members v does not model.
func splitMembers(data []byte, v any) (members, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var all members
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, eris.Wrap(err, "pure: decode object members")
	}
	for _, k := range knownKeys(reflect.TypeOf(v).Elem()) {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// joinMembers encodes v and adds the extra members it does not already carry.
func joinMembers(v any, extra members) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var all members
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, eris.Wrap(err, "pure: re-encode object members")
	}
	for k, raw := range extra {
		if _, ok := all[k]; !ok {
			all[k] = raw
		}
	}
	return json.Marshal(all)
}
