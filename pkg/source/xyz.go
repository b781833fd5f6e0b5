// Package source reads terrain coordinates from files: plain XYZ text
// and gob snapshots of previously fetched point sets.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/1F47E/go-terrain-grid/pkg/models"
)

// ReadXYZ parses one "x y z" triple per line. Fields may be separated by
// whitespace, commas or semicolons. Blank lines and lines starting with
// '#' are skipped.
func ReadXYZ(r io.Reader) (models.PointSet, error) {
	var points models.PointSet

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ',' || r == ';'
		})
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", line, len(fields))
		}

		var xyz [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			xyz[i] = v
		}
		points = append(points, models.Coordinate{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read xyz: %w", err)
	}
	return points, nil
}

// ReadXYZFile opens filename and parses it with ReadXYZ
func ReadXYZFile(filename string) (models.PointSet, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ReadXYZ(file)
}
