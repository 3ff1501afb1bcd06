package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Row is a request as the physical store hands it over: column names in
// whatever case the store uses, large text possibly as raw bytes, flags as
// integers. Normalize turns it into a Request.
type Row map[string]any

type field int

const (
	fieldUnknown field = iota
	fieldID
	fieldRequesterID
	fieldRequesterName
	fieldSector
	fieldMachine
	fieldDescription
	fieldStatus
	fieldPriority
	fieldServiceType
	fieldCreatedAt
	fieldUpdatedAt
	fieldNotes
	fieldCreatedViaScan
	fieldAssignedTechnician
	fieldCount
)

// column is a recognized column name. Legacy names are the ones the old
// table used before the columns were renamed.
type column struct {
	field  field
	legacy bool
}

// columns maps folded column names, current and legacy, to fields.
var columns = map[string]column{
	"id":                 {fieldID, false},
	"requesterid":        {fieldRequesterID, false},
	"operadorid":         {fieldRequesterID, true},
	"requestername":      {fieldRequesterName, false},
	"operadornome":       {fieldRequesterName, true},
	"sector":             {fieldSector, false},
	"setor":              {fieldSector, true},
	"machine":            {fieldMachine, false},
	"maquina":            {fieldMachine, true},
	"description":        {fieldDescription, false},
	"descricao":          {fieldDescription, true},
	"status":             {fieldStatus, false},
	"priority":           {fieldPriority, false},
	"prioridade":         {fieldPriority, true},
	"servicetype":        {fieldServiceType, false},
	"tiposervico":        {fieldServiceType, true},
	"createdat":          {fieldCreatedAt, false},
	"datacriacao":        {fieldCreatedAt, true},
	"updatedat":          {fieldUpdatedAt, false},
	"dataatualizacao":    {fieldUpdatedAt, true},
	"notes":              {fieldNotes, false},
	"observacoes":        {fieldNotes, true},
	"createdviascan":     {fieldCreatedViaScan, false},
	"criadoporqr":        {fieldCreatedViaScan, true},
	"assignedtechnician": {fieldAssignedTechnician, false},
	"responsaveltecnico": {fieldAssignedTechnician, true},
}

var keyFolder = strings.NewReplacer("_", "", "-", "", " ", "")

func lookupColumn(key string) (column, bool) {
	c, ok := columns[keyFolder.Replace(strings.ToLower(key))]
	return c, ok
}

// Normalize converts a store row into a canonical Request. Unknown columns are
// ignored. When a row carries both a current column and its legacy name, the
// current one wins unless it is blank. Missing or unrecognized priority and
// service type fall back to DefaultPriority and DefaultServiceType; a missing
// status reads as pending.
func Normalize(row Row) Request {
	var (
		values    [fieldCount]any
		present   [fieldCount]bool
		canonical [fieldCount]bool
	)
	for key, v := range row {
		col, ok := lookupColumn(key)
		if !ok {
			continue
		}
		f := col.field
		switch {
		case col.legacy && canonical[f]:
			continue
		case !col.legacy && blank(v) && present[f]:
			continue
		}
		values[f], present[f] = v, true
		canonical[f] = !col.legacy && !blank(v)
	}

	var (
		r                         Request
		status, priority, service string
	)
	for f := field(1); f < fieldCount; f++ {
		if !present[f] {
			continue
		}
		v := values[f]
		switch f {
		case fieldID:
			r.ID = text(v)
		case fieldRequesterID:
			r.RequesterID = text(v)
		case fieldRequesterName:
			r.RequesterName = text(v)
		case fieldSector:
			r.Sector = text(v)
		case fieldMachine:
			r.Machine = text(v)
		case fieldDescription:
			r.Description = text(v)
		case fieldStatus:
			status = text(v)
		case fieldPriority:
			priority = text(v)
		case fieldServiceType:
			service = text(v)
		case fieldCreatedAt:
			if t, ok := timestamp(v); ok {
				r.CreatedAt = t
			}
		case fieldUpdatedAt:
			if t, ok := timestamp(v); ok {
				r.UpdatedAt = &t
			}
		case fieldNotes:
			r.Notes = text(v)
		case fieldCreatedViaScan:
			r.CreatedViaScan = flag(v)
		case fieldAssignedTechnician:
			r.AssignedTechnician = text(v)
		}
	}

	switch s, ok := ParseStatus(status); {
	case ok:
		r.Status = s
	case strings.TrimSpace(status) == "":
		r.Status = StatusPending
	default:
		r.Status = Status(strings.TrimSpace(status))
	}
	r.Priority = ParsePriority(priority)
	r.ServiceType = ParseServiceType(service)
	return r
}

// blank reports whether a column value carries nothing.
func blank(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []byte:
		return len(bytes.TrimSpace(v)) == 0
	}
	return false
}

// NormalizeAll normalizes every row, keeping order.
func NormalizeAll(rows []Row) []Request {
	out := make([]Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, Normalize(row))
	}
	return out
}

// text decodes a column value into a string. Binary payloads arrive as []byte
// from a driver, or as a byte array or {"type":"Buffer","data":[...]} envelope
// once they have been through JSON.
func text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case map[string]any:
		if b, ok := byteArray(v["data"]); ok {
			return string(b)
		}
		return ""
	case []any:
		if b, ok := byteArray(v); ok {
			return string(b)
		}
		return ""
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

func byteArray(v any) ([]byte, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	b := make([]byte, 0, len(items))
	for _, item := range items {
		n, ok := number(item)
		if !ok || n < 0 || n > 255 || n != math.Trunc(n) {
			return nil, false
		}
		b = append(b, byte(n))
	}
	return b, true
}

func number(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// flag reads boolean-as-integer columns.
func flag(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return truthy(v)
	case []byte:
		return truthy(string(v))
	}
	if n, ok := number(v); ok {
		return n != 0
	}
	return false
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "s", "sim", "y", "yes":
		return true
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// timestamp reads a time column. Zone-less strings are taken as UTC; numbers
// are epoch milliseconds.
func timestamp(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, !v.IsZero()
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	}
	if n, ok := number(v); ok {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
