// Package parse turns raw vision-model output into validated page elements.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spherical/bbox-ocr/internal/domain"
	"github.com/spherical/bbox-ocr/internal/observability"
)

const (
	detailUnrecoverable = "unrecoverable truncated response"
	detailNoJSON        = "parse error: no JSON array in model response"
	detailTruncated     = "response truncated at max_tokens; later content may be missing"
)

var rotationPattern = regexp.MustCompile(`"page_rotation_degrees"\s*:\s*(-?\d+(?:\.\d+)?)`)

// Result is the parsed outcome for one page.
type Result struct {
	Elements    []domain.Element
	Status      domain.PageStatus
	Detail      string
	Rotation    float64
	Dropped     int
	Repaired    bool
	NeedsReview bool
}

// Parser validates model output. It never fails with a Go error; malformed
// output is reported through Result.Status.
type Parser struct {
	logger *observability.Logger
}

// NewParser creates a parser that logs dropped elements to logger.
func NewParser(logger *observability.Logger) *Parser {
	return &Parser{logger: observability.OrNop(logger).WithOperation("parse")}
}

// Parse interprets a raw inference response.
func (p *Parser) Parse(resp *domain.RawResponse) Result {
	if resp == nil {
		return failed(detailNoJSON)
	}
	return p.ParseContent(resp.Content, resp.Truncated())
}

// ParseContent interprets model text. truncated reports that generation
// stopped at the token limit.
func (p *Parser) ParseContent(content string, truncated bool) Result {
	body := strings.TrimSpace(content)
	if !json.Valid([]byte(body)) {
		body = strings.TrimSpace(stripCodeFence(body))
	}
	if body == "" {
		if truncated {
			return failed(detailUnrecoverable)
		}
		p.logger.Warn().Msg("empty model response, treating page as blank")
		return Result{Status: domain.StatusOK, Elements: []domain.Element{}, NeedsReview: true}
	}

	start := elementStart(body)
	if start < 0 {
		return failed(detailNoJSON)
	}
	body = body[start:]

	var rotation float64
	if body[0] == '{' {
		arrayText, rot, single := p.unwrapObject(body)
		rotation = rot
		switch {
		case single != nil:
			res := p.fromRaw([]json.RawMessage{single}, truncated)
			res.Rotation = rotation
			return res
		case arrayText == "":
			if truncated {
				return failed(detailUnrecoverable)
			}
			return failed(detailNoJSON)
		}
		body = arrayText
	}

	res := p.parseArray(body, truncated)
	res.Rotation = rotation
	return res
}

func (p *Parser) parseArray(text string, truncated bool) Result {
	end := matchingClose(text, 0)
	candidate := text
	if end >= 0 {
		candidate = text[:end+1]
	}

	var raws []json.RawMessage
	err := json.Unmarshal([]byte(stripTrailingCommas(candidate)), &raws)
	if err == nil {
		return p.fromRaw(raws, truncated)
	}

	cutOff := truncated || end < 0
	repaired, ok := repairTruncatedArray(candidate)
	if ok {
		raws = nil
		if rerr := json.Unmarshal([]byte(stripTrailingCommas(repaired)), &raws); rerr == nil && len(raws) > 0 {
			res := p.fromRaw(raws, false)
			if res.Status == domain.StatusFailed {
				return res
			}
			res.Status = domain.StatusPartial
			res.Repaired = true
			if cutOff {
				res.Detail = fmt.Sprintf("truncated response: recovered %d complete elements", len(raws))
			} else {
				res.Detail = fmt.Sprintf("malformed response: recovered %d complete elements", len(raws))
			}
			p.logger.Warn().Int("recovered", len(raws)).Bool("truncated", cutOff).Msg("repaired model response")
			return res
		}
	}

	if cutOff {
		return failed(detailUnrecoverable)
	}
	return failed(fmt.Sprintf("parse error: %v", err))
}

// unwrapObject handles the object form {"page_rotation_degrees": r, "elements": [...]}.
// A bare element object is returned as single.
func (p *Parser) unwrapObject(text string) (arrayText string, rotation float64, single json.RawMessage) {
	if m := rotationPattern.FindStringSubmatch(text); m != nil {
		rotation, _ = strconv.ParseFloat(m[1], 64)
	}

	candidate := text
	if end := matchingClose(text, 0); end >= 0 {
		candidate = text[:end+1]
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripTrailingCommas(candidate)), &obj); err == nil {
		if elems, ok := obj["elements"]; ok {
			return strings.TrimSpace(string(elems)), rotation, nil
		}
		if _, ok := obj["type"]; ok {
			return "", rotation, json.RawMessage(candidate)
		}
		return "", rotation, nil
	}

	// cut off inside the object: fall back to the elements array text
	key := strings.Index(text, `"elements"`)
	if key < 0 {
		return "", rotation, nil
	}
	open := strings.IndexByte(text[key:], '[')
	if open < 0 {
		return "", rotation, nil
	}
	arrayText = text[key+open:]
	if end := matchingClose(arrayText, 0); end >= 0 {
		arrayText = arrayText[:end+1]
	}
	return arrayText, rotation, nil
}

func (p *Parser) fromRaw(raws []json.RawMessage, truncated bool) Result {
	res := Result{Status: domain.StatusOK, Elements: make([]domain.Element, 0, len(raws))}
	for i, raw := range raws {
		el, err := decodeElement(raw)
		if err != nil {
			res.Dropped++
			p.logger.Warn().Int("element", i).Err(err).Msg("dropping element")
			continue
		}
		res.Elements = append(res.Elements, el)
	}

	if len(raws) > 0 && len(res.Elements) == 0 {
		p.logger.Warn().Int("dropped", res.Dropped).Msg("every element was rejected")
		res = failed(fmt.Sprintf("parse error: all %d elements were rejected", res.Dropped))
		res.Dropped = len(raws)
		return res
	}
	if len(raws) == 0 {
		res.NeedsReview = true
		p.logger.Warn().Msg("model returned no elements, treating page as blank")
	}
	if truncated {
		res.Status = domain.StatusPartial
		res.Detail = detailTruncated
	}
	return res
}

var (
	errNotObject   = errors.New("element is not an object")
	errUnknownKind = errors.New("unknown element type")
	errBadBBox     = errors.New("bbox must hold four numbers")
)

func decodeElement(raw json.RawMessage) (domain.Element, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.Element{}, errNotObject
	}

	var label string
	if err := json.Unmarshal(fields["type"], &label); err != nil {
		return domain.Element{}, errUnknownKind
	}
	kind, ok := domain.ParseElementKind(label)
	if !ok {
		return domain.Element{}, fmt.Errorf("%w: %q", errUnknownKind, label)
	}

	bbox, err := decodeBBox(fields["bbox"])
	if err != nil {
		return domain.Element{}, err
	}

	text, ok := fields["text"]
	if !ok {
		text = fields["content"]
	}

	return domain.Element{Kind: kind, BBox: bbox, Content: decodeText(text)}, nil
}

func decodeBBox(raw json.RawMessage) (domain.BBox, error) {
	var values []interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &values) != nil || len(values) < 4 {
		return domain.BBox{}, errBadBBox
	}

	var coords [4]float64
	for i := 0; i < 4; i++ {
		switch v := values[i].(type) {
		case float64:
			coords[i] = v
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return domain.BBox{}, errBadBBox
			}
			coords[i] = f
		default:
			return domain.BBox{}, errBadBBox
		}
	}
	return domain.NewBBox(coords[0], coords[1], coords[2], coords[3]), nil
}

func decodeText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func failed(detail string) Result {
	return Result{Status: domain.StatusFailed, Elements: []domain.Element{}, Detail: detail}
}
