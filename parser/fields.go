package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

const propertyValuesMarker = `"skuPropertyValues":`

// ScalarField describes a single string or numeric value. Names are tried in
// order and the first present marker wins.
type ScalarField struct {
	Names   []string
	Numeric bool
}

// ListField describes a variant property list such as colors or sizes.
// Labels anchor the list by property name; Occurrence is the 1-based
// position of the values marker used when no label matches.
type ListField struct {
	Name       string
	Occurrence int
	Labels     []string
}

// ImageField describes an array of image URLs.
type ImageField struct {
	Name string
}

// ExtractScalar reads a scalar field. A missing marker yields "" for strings and "0" for numbers.
func ExtractScalar(sc Scanner, f ScalarField) (string, error) {
	for _, name := range f.Names {
		if f.Numeric {
			pos, ok := sc.FindMarker(`"`+name+`":`, 0)
			if !ok {
				continue
			}
			raw, err := sc.ReadUntil(pos, ",", "}")
			if err != nil {
				return "", fmt.Errorf("%s: %w", name, err)
			}
			value := NormalizeNumber(raw)
			if value == "" {
				return "0", nil
			}
			return value, nil
		}

		pos, ok := sc.FindMarker(`"`+name+`":"`, 0)
		if !ok {
			continue
		}
		raw, err := sc.ReadString(pos)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return sc.Decode(raw), nil
	}

	if f.Numeric {
		return "0", nil
	}
	return "", nil
}

type propertyValue struct {
	DisplayName string `json:"propertyValueDisplayName"`
}

// ExtractList reads a property value list, projecting each display name
// entity-decoded and upper-cased. A missing marker yields an empty list.
func ExtractList(sc Scanner, f ListField) ([]string, error) {
	pos, ok := locateList(sc, f)
	if !ok {
		return []string{}, nil
	}
	return readList(sc, f, pos)
}

// ExtractLists reads several list fields of one payload. Once any field is
// anchored by a label, fields without a matching label come back empty
// instead of falling back to occurrence order, so a labelled block is never
// read twice.
func ExtractLists(sc Scanner, fields ...ListField) ([][]string, error) {
	positions := make([]int, len(fields))
	anchored := make([]bool, len(fields))
	anyAnchored := false
	for i, f := range fields {
		positions[i], anchored[i] = locateByLabel(sc, f)
		anyAnchored = anyAnchored || anchored[i]
	}

	out := make([][]string, len(fields))
	for i, f := range fields {
		pos, ok := positions[i], anchored[i]
		if !ok && !anyAnchored {
			pos, ok = locateByOccurrence(sc, f)
		}
		if !ok {
			out[i] = []string{}
			continue
		}
		values, err := readList(sc, f, pos)
		if err != nil {
			return nil, err
		}
		out[i] = values
	}
	return out, nil
}

func readList(sc Scanner, f ListField, pos int) ([]string, error) {
	raw, err := sc.ReadUntil(pos, "}]}")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}

	var values []propertyValue
	if err := json.Unmarshal([]byte(raw+"}]"), &values); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", f.Name, ErrMalformedList, err)
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToUpper(sc.Decode(v.DisplayName)))
	}
	return out, nil
}

func locateList(sc Scanner, f ListField) (int, bool) {
	if pos, ok := locateByLabel(sc, f); ok {
		return pos, true
	}
	return locateByOccurrence(sc, f)
}

func locateByLabel(sc Scanner, f ListField) (int, bool) {
	for _, label := range f.Labels {
		anchor, ok := sc.FindMarker(label, 0)
		if !ok {
			continue
		}
		if pos, ok := sc.FindMarker(propertyValuesMarker, anchor); ok {
			return pos, true
		}
	}
	return 0, false
}

func locateByOccurrence(sc Scanner, f ListField) (int, bool) {
	if f.Occurrence <= 0 {
		return 0, false
	}
	pos := 0
	for i := 0; i < f.Occurrence; i++ {
		next, ok := sc.FindMarker(propertyValuesMarker, pos)
		if !ok {
			return 0, false
		}
		pos = next
	}
	return pos, true
}

// ExtractImageURLs reads an image URL array. Quotes are stripped and blank
// entries dropped; a missing marker yields an empty list.
func ExtractImageURLs(sc Scanner, f ImageField) ([]string, error) {
	pos, ok := sc.FindMarker(`"`+f.Name+`":[`, 0)
	if !ok {
		return []string{}, nil
	}
	raw, err := sc.ReadUntil(pos, "]")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}

	var urls []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.ReplaceAll(part, `"`, ""))
		if part == "" {
			continue
		}
		urls = append(urls, part)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}
