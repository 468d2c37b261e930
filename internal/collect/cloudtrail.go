package collect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/1sec-project/authburst/internal/core"
)

// CloudTrailParser reads CloudTrail log files ({"Records": [...]} or a bare
// array of records). Every record that carries an errorCode is an error
// event keyed by (resolved identity, eventName).
type CloudTrailParser struct {
	tag  string
	opts Options
}

type cloudTrailRecord struct {
	EventTime       *string                `json:"eventTime"`
	EventName       *string                `json:"eventName"`
	EventSource     *string                `json:"eventSource"`
	ErrorCode       *string                `json:"errorCode"`
	ErrorMessage    *string                `json:"errorMessage"`
	SourceIPAddress *string                `json:"sourceIPAddress"`
	UserIdentity    map[string]interface{} `json:"userIdentity"`
}

func NewCloudTrailParser(tag string, opts Options) *CloudTrailParser {
	if tag == "" {
		tag = "cloud-audit"
	}
	return &CloudTrailParser{tag: tag, opts: opts}
}

func (p *CloudTrailParser) Name() string { return "cloudtrail" }

func (p *CloudTrailParser) Tag() string { return p.tag }

// Parse fails only when the file cannot be read or is not JSON at all.
// Individual records that do not decode are counted and skipped.
func (p *CloudTrailParser) Parse(path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	res := newResult()
	for _, rec := range records {
		res.Total++

		var ev cloudTrailRecord
		if err := json.Unmarshal(rec, &ev); err != nil {
			res.Malformed++
			continue
		}
		if ev.ErrorCode == nil {
			continue
		}
		res.Errors++

		if ev.EventName == nil || ev.EventTime == nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, *ev.EventTime)
		if err != nil {
			// no timestamp, no place in a window
			continue
		}

		identity := "identity:<missing>"
		if ev.UserIdentity != nil {
			identity = ResolveIdentity(ev.UserIdentity)
		}
		if p.opts.IncludeSourceIP && ev.SourceIPAddress != nil && *ev.SourceIPAddress != "" {
			identity += "@" + *ev.SourceIPAddress
		}

		res.Groups.Add(core.NormalizedEvent{
			Identity:  identity,
			Kind:      *ev.EventName,
			Timestamp: ts.UTC(),
			Source:    p.tag,
		})
	}

	return res, nil
}

func decodeRecords(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var doc struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.Records, nil
}

// ResolveIdentity maps a CloudTrail userIdentity block to an identity token:
//
//	IAMUser     -> user:<userName>
//	AssumedRole -> role:<role>/<session> (from the ARN), else role-session:<principalId>
//	AWSService  -> service:<invokedBy>
//	Root        -> root:<accountId>
//	other       -> other:<arn, or the type name>
func ResolveIdentity(ui map[string]interface{}) string {
	str := func(key string) (string, bool) {
		v, ok := ui[key].(string)
		return v, ok && v != ""
	}

	idType, ok := str("type")
	if !ok {
		idType = "Unknown"
	}

	switch idType {
	case "IAMUser":
		if name, ok := str("userName"); ok {
			return "user:" + name
		}
		return "user:<unknown>"

	case "AssumedRole":
		if arn, ok := str("arn"); ok {
			// arn:aws:sts::acct:assumed-role/ROLE/SESSION
			if _, rest, found := strings.Cut(arn, "assumed-role/"); found {
				return "role:" + rest
			}
		}
		if pid, ok := str("principalId"); ok {
			return "role-session:" + pid
		}
		return "role:<unknown>"

	case "AWSService":
		if by, ok := str("invokedBy"); ok {
			return "service:" + by
		}
		return "service:<unknown>"

	case "Root":
		if acct, ok := str("accountId"); ok {
			return "root:" + acct
		}
		return "root:<unknown>"

	default:
		if arn, ok := str("arn"); ok {
			return "other:" + arn
		}
		return "other:" + idType
	}
}
