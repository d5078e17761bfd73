package payload

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/tryfix/errors"
)

// lines are messages; a 10MB cap keeps a single oversized row from OOMing the run
const maxLineBytes = 10 * 1024 * 1024

// Read returns the rows of a newline-delimited payload file in input order,
// one row per message.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot open payload file [%s]`, path))
	}
	defer func() { _ = f.Close() }()

	lines, err := scan(f)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot read payload file [%s]`, path))
	}

	return lines, nil
}

func scan(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}
