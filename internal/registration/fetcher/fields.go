package fetcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"registrar/internal/registration/models"
)

const (
	maxFilterKeys            = 50
	maxValuesPerFilter       = 50
	maxFilterStringBytes     = 25
	maxFilterMapsPerSet      = 20
	maxAggregateKeys         = 50
	maxAggregateKeyIDBytes   = 25
	maxAggregatableValue     = 65536
	maxAggregatableEntries   = 50
	reservedFilterSourceType = "source_type"
)

var keyPiecePattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]{1,32}$`)

// fields is a decoded registration header: the top-level JSON object with
// values left raw until each field is interpreted.
type fields map[string]json.RawMessage

func decodeFields(payload string) (fields, error) {
	var f fields
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return nil, fmt.Errorf("payload is not a json object: %w", err)
	}
	if f == nil {
		return nil, errors.New("payload is not a json object")
	}
	return f, nil
}

func (f fields) has(name string) bool {
	raw, ok := f[name]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// token returns the textual form of a string or number field.
func (f fields) token(name string) (string, bool) {
	if !f.has(name) {
		return "", false
	}
	return rawToken(f[name])
}

func rawToken(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String(), true
	}
	return "", false
}

func (f fields) str(name string) (string, bool, error) {
	if !f.has(name) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(f[name], &s); err != nil {
		return "", false, fmt.Errorf("%s must be a string", name)
	}
	return s, true, nil
}

func (f fields) boolean(name string) (bool, error) {
	if !f.has(name) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(f[name], &b); err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return b, nil
}

// int64Field parses a signed integer carried as a string or number. An
// unparsable value is an error; an absent one yields def.
func (f fields) int64Field(name string, def int64) (int64, error) {
	tok, ok := f.token(name)
	if !ok {
		if f.has(name) {
			return 0, fmt.Errorf("%s must be a string or number", name)
		}
		return def, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// optionalUnsigned applies the unsigned 64-bit rules to an optional field:
// anything unparsable leaves it absent.
func (f fields) optionalUnsigned(name string) *uint64 {
	tok, ok := f.token(name)
	if !ok {
		return nil
	}
	v, ok := models.ParseUnsigned64(tok)
	if !ok {
		return nil
	}
	return &v
}

func parseFilterMap(raw json.RawMessage, allowSourceType bool) (models.FilterData, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, errors.New("filter must be an object")
	}
	if len(obj) > maxFilterKeys {
		return nil, fmt.Errorf("filter has %d keys, max %d", len(obj), maxFilterKeys)
	}
	out := make(models.FilterData, len(obj))
	for key, rawValues := range obj {
		if len(key) > maxFilterStringBytes {
			return nil, fmt.Errorf("filter key %q too long", key)
		}
		if strings.HasPrefix(key, "_") {
			return nil, fmt.Errorf("filter key %q is reserved", key)
		}
		if key == reservedFilterSourceType && !allowSourceType {
			return nil, fmt.Errorf("filter key %q is reserved", key)
		}
		var values []string
		if err := json.Unmarshal(rawValues, &values); err != nil {
			return nil, fmt.Errorf("filter %q values must be a string array", key)
		}
		if len(values) > maxValuesPerFilter {
			return nil, fmt.Errorf("filter %q has %d values, max %d", key, len(values), maxValuesPerFilter)
		}
		for _, v := range values {
			if len(v) > maxFilterStringBytes {
				return nil, fmt.Errorf("filter %q value too long", key)
			}
		}
		out[key] = values
	}
	return out, nil
}

// parseFilterSet accepts a single filter map or an array of them.
func parseFilterSet(raw json.RawMessage) (models.FilterSet, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var maps []json.RawMessage
		if err := json.Unmarshal(trimmed, &maps); err != nil {
			return nil, errors.New("filters must be an object or array of objects")
		}
		if len(maps) > maxFilterMapsPerSet {
			return nil, fmt.Errorf("filters has %d maps, max %d", len(maps), maxFilterMapsPerSet)
		}
		set := make(models.FilterSet, 0, len(maps))
		for _, m := range maps {
			fm, err := parseFilterMap(m, true)
			if err != nil {
				return nil, err
			}
			set = append(set, fm)
		}
		return set, nil
	}
	fm, err := parseFilterMap(trimmed, true)
	if err != nil {
		return nil, err
	}
	return models.FilterSet{fm}, nil
}

func (f fields) filterSet(name string) (models.FilterSet, error) {
	if !f.has(name) {
		return nil, nil
	}
	set, err := parseFilterSet(f[name])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return set, nil
}

func parseAggregationKeys(raw json.RawMessage) (map[string]string, error) {
	var keys map[string]string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, errors.New("aggregation_keys must map names to strings")
	}
	if len(keys) > maxAggregateKeys {
		return nil, fmt.Errorf("aggregation_keys has %d entries, max %d", len(keys), maxAggregateKeys)
	}
	for id, piece := range keys {
		if err := validateKeyID(id); err != nil {
			return nil, err
		}
		if !validKeyPiece(piece) {
			return nil, fmt.Errorf("aggregation key %q has invalid key piece", id)
		}
	}
	return keys, nil
}

func validateKeyID(id string) error {
	if id == "" || len(id) > maxAggregateKeyIDBytes {
		return fmt.Errorf("aggregation key id %q must be 1..%d bytes", id, maxAggregateKeyIDBytes)
	}
	return nil
}

func validKeyPiece(piece string) bool {
	return keyPiecePattern.MatchString(piece)
}
