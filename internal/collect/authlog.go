package collect

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/1sec-project/authburst/internal/core"
)

// Event kinds emitted by the sshd parser.
const (
	KindSSHInvalidUser    = "ssh_invalid_user"
	KindSSHFailedPassword = "ssh_failed_password"
)

// AuthLogParser reads sshd journal exports (journalctl -u ssh, short or
// short-iso output) and emits one event per invalid-user or failed-password
// line. Identities look like "user:<name>@<source address>".
type AuthLogParser struct {
	tag  string
	opts Options
}

var (
	// sshd: Invalid user admin from 1.2.3.4 port 22
	sshInvalidUserRe = regexp.MustCompile(`Invalid user (\S+)`)
	// sshd: Failed password for invalid user admin from 1.2.3.4 port 22 ssh2
	sshFailedInvalidRe = regexp.MustCompile(`Failed password for invalid user (\S+)`)
	// sshd: Failed password for root from 1.2.3.4 port 22 ssh2
	sshFailedUserRe = regexp.MustCompile(`Failed password for (\S+)`)
	// "... from ::1 port 33368"
	sshSourceRe = regexp.MustCompile(` from (\S+)`)
)

const (
	syslogStampLen    = len("Jan 02 15:04:05")
	syslogStampLayout = "2006 Jan _2 15:04:05"
)

var isoStampLayouts = []string{
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000000-0700",
	time.RFC3339Nano,
}

func NewAuthLogParser(tag string, opts Options) *AuthLogParser {
	if tag == "" {
		tag = "ssh-daemon"
	}
	return &AuthLogParser{tag: tag, opts: opts}
}

func (p *AuthLogParser) Name() string { return "authlog" }

func (p *AuthLogParser) Tag() string { return p.tag }

// Parse reads the whole file. Lines that are not sshd auth failures are
// counted but otherwise ignored; failure lines with an unreadable
// timestamp are counted as malformed and skipped.
func (p *AuthLogParser) Parse(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	res := newResult()
	year := p.opts.year()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		res.Total++

		var kind string
		switch {
		case strings.Contains(line, "Invalid user "):
			kind = KindSSHInvalidUser
		case strings.Contains(line, "Failed password"):
			kind = KindSSHFailedPassword
		default:
			continue
		}
		res.Errors++

		ts, err := parseJournalStamp(line, year)
		if err != nil {
			res.Malformed++
			continue
		}

		res.Groups.Add(core.NormalizedEvent{
			Identity:  fmt.Sprintf("user:%s@%s", extractSSHUser(line), extractSSHSource(line)),
			Kind:      kind,
			Timestamp: ts,
			Source:    p.tag,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return res, nil
}

// parseJournalStamp reads the leading timestamp of a journal line. The
// classic "Jan 07 11:48:14" form has no year, so year is injected and the
// result is taken as UTC.
func parseJournalStamp(line string, year int) (time.Time, error) {
	if line != "" && line[0] >= '0' && line[0] <= '9' {
		field := line
		if i := strings.IndexByte(line, ' '); i > 0 {
			field = line[:i]
		}
		for _, layout := range isoStampLayouts {
			if ts, err := time.Parse(layout, field); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", field)
	}

	if len(line) < syslogStampLen {
		return time.Time{}, fmt.Errorf("line too short for timestamp")
	}
	ts, err := time.Parse(syslogStampLayout, fmt.Sprintf("%d %s", year, line[:syslogStampLen]))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return ts, nil
}

func extractSSHUser(line string) string {
	for _, re := range []*regexp.Regexp{sshInvalidUserRe, sshFailedInvalidRe, sshFailedUserRe} {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return "unknown"
}

func extractSSHSource(line string) string {
	if m := sshSourceRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return "unknown"
}
