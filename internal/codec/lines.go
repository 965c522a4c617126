package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/TheMichaelB/lssh/internal/models"
)

// LineError describes an entry of a legacy file that was not imported.
// Line is zero when the entry decoded but was rejected afterwards.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	if e.Line <= 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error {
	return e.Err
}

// DecodeLines reads the legacy plaintext format: one JSON object per line.
// Blank lines are ignored and undecodable lines are skipped and reported,
// so one bad entry does not lose the rest of the file. The returned error
// is only set when reading itself fails.
func DecodeLines(r io.Reader) ([]models.ConnectionRecord, []LineError, error) {
	records := []models.ConnectionRecord{}
	var skipped []LineError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec models.ConnectionRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped = append(skipped, LineError{Line: lineNo, Err: err})
			continue
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read legacy connections: %w", err)
	}

	return records, skipped, nil
}
