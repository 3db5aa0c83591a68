package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	report "github.com/kinfkong/modern-mgo-report"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// csvGenerator writes one CSV record per document, taking the listed
// fields in order. Missing fields are written as empty strings.
type csvGenerator struct {
	fields    []string
	delimiter rune
	header    bool
}

func newCSVGenerator(fields []string, delimiter string, header bool) (*csvGenerator, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one field is required")
	}
	comma, size := utf8.DecodeRuneInString(delimiter)
	if size == 0 || size != len(delimiter) {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
	}
	return &csvGenerator{fields: fields, delimiter: comma, header: header}, nil
}

// Generate implements report.Generator.
func (g *csvGenerator) Generate(ctx context.Context, w io.Writer, payload report.Payload, _ report.Options) error {
	if payload.Walker == nil {
		return fmt.Errorf("csv export needs a collection traversal")
	}

	out := csv.NewWriter(w)
	out.Comma = g.delimiter

	if g.header {
		if err := out.Write(g.fields); err != nil {
			return err
		}
	}

	record := make([]string, len(g.fields))
	err := payload.Walker.Walk(ctx, func(doc bson.M) error {
		for i, field := range g.fields {
			value, _ := report.LookupPath(doc, field)
			record[i] = formatValue(value)
		}
		return out.Write(record)
	})

	out.Flush()
	if err != nil {
		return err
	}
	return out.Error()
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bson.M, bson.D, bson.A:
		data, err := bson.MarshalExtJSON(bson.M{"v": v}, false, false)
		if err != nil {
			return fmt.Sprint(v)
		}
		// Strip the {"v": ...} wrapper
		text := string(data)
		text = strings.TrimPrefix(text, `{"v":`)
		return strings.TrimSuffix(text, "}")
	default:
		return fmt.Sprint(v)
	}
}

func splitFields(raw string) []string {
	var fields []string
	for _, field := range strings.Split(raw, ",") {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}
