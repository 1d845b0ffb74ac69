package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/bft-labs/auditship/pkg/auditship"
	"github.com/bft-labs/auditship/pkg/log"
)

const maxLineBytes = 1 << 20

// readItems decodes newline-delimited JSON from r and calls report once per
// line. A line is a single item object or an array of items. Lines that do
// not decode are logged and skipped.
func readItems(ctx context.Context, r io.Reader, logger log.Logger, report func([]auditship.Item) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		items, err := parseLine(sc.Bytes())
		if err != nil {
			logger.Warn("skipping input line", log.Int("line", line), log.Err(err))
			continue
		}
		if len(items) == 0 {
			continue
		}
		if err := report(items); err != nil {
			return fmt.Errorf("report line %d: %w", line, err)
		}
	}
	return sc.Err()
}

func parseLine(b []byte) ([]auditship.Item, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] == '[' {
		var items []auditship.Item
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var it auditship.Item
	if err := json.Unmarshal(b, &it); err != nil {
		return nil, err
	}
	return []auditship.Item{it}, nil
}
