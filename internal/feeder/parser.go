package feeder

import (
	"bufio"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sawdustofmind/cricket-live-scoring/internal/log"
	"github.com/sawdustofmind/cricket-live-scoring/internal/models"
)

// ParsedCommand is one replayable frame from a recorded command file.
type ParsedCommand struct {
	LineNumber int
	Command    models.Command
	Raw        []byte
}

// ParseFile reads a JSONL command file. Blank and unparsable lines are
// skipped with a warning; file order is preserved because commands for one
// match must replay in the order they were scored.
func ParseFile(filePath string) ([]ParsedCommand, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Error("Failed to close file", zap.Error(closeErr))
		}
	}()

	scanner := bufio.NewScanner(file)

	// Increase buffer size for large lines
	const maxCapacity = 1024 * 1024 // 1MB
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	var commands []ParsedCommand
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		cmd, err := models.DecodeCommand(line)
		if err != nil {
			log.Warn("Skipping bad command line",
				zap.Int("line_number", lineNum),
				zap.Error(err),
			)
			continue
		}

		commands = append(commands, ParsedCommand{
			LineNumber: lineNum,
			Command:    cmd,
			Raw:        append([]byte(nil), line...),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	log.Info("Successfully parsed commands", zap.Int("command_count", len(commands)))
	return commands, nil
}
