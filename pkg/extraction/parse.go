package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// ErrUnparseable is returned when a response cannot be read as candidates
// even after repair.
var ErrUnparseable = errors.New("extraction: response is not valid JSON")

// RepairMode selects how far ParseResponse goes to recover malformed JSON.
type RepairMode string

const (
	// RepairTrailingCommas only removes separators directly before a closing
	// brace or bracket.
	RepairTrailingCommas RepairMode = "trailing_commas"
	// RepairLenient additionally runs a general JSON repair pass.
	RepairLenient RepairMode = "lenient"
)

// ParseRepairMode validates a repair mode name. The empty string selects
// RepairTrailingCommas.
func ParseRepairMode(s string) (RepairMode, error) {
	switch RepairMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RepairTrailingCommas:
		return RepairTrailingCommas, nil
	case RepairLenient:
		return RepairLenient, nil
	}
	return "", fmt.Errorf("unknown repair mode %q (want trailing_commas or lenient)", s)
}

var (
	codeBlockPattern     = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseResponse reads candidate records out of a model response. The first
// fenced code block is used when present, otherwise the whole text.
func ParseResponse(text string, mode RepairMode) (types.Candidates, error) {
	payload := strings.TrimSpace(text)
	if m := codeBlockPattern.FindStringSubmatch(text); m != nil {
		payload = strings.TrimSpace(m[1])
	}

	var out types.Candidates
	err := json.Unmarshal([]byte(payload), &out)
	if err == nil {
		return out, nil
	}

	out = types.Candidates{}
	fixed := trailingCommaPattern.ReplaceAllString(payload, "$1")
	if json.Unmarshal([]byte(fixed), &out) == nil {
		return out, nil
	}

	if mode == RepairLenient {
		out = types.Candidates{}
		repaired, rerr := jsonrepair.JSONRepair(payload)
		if rerr == nil && json.Unmarshal([]byte(repaired), &out) == nil {
			return out, nil
		}
	}

	return types.Candidates{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
}
