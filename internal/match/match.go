// Package match binds candidate quiz files to roster students using the
// digit runs in the file name.
package match

import (
	"path/filepath"
	"regexp"

	"github.com/remi/quizshare/internal/roster"
)

var numberPattern = regexp.MustCompile(`[0-9]+`)

// ExtractNumber returns the leftmost maximal run of decimal digits in the
// base name of path. ok is false when the name contains no digits.
func ExtractNumber(path string) (number string, ok bool) {
	number = numberPattern.FindString(filepath.Base(path))
	return number, number != ""
}

// numberRuns returns every maximal digit run in the base name, left to right.
func numberRuns(path string) []string {
	return numberPattern.FindAllString(filepath.Base(path), -1)
}

// Result is the outcome of associating candidates with a roster.
type Result struct {
	Matched   []*roster.Student // candidate input order
	Unmatched []string          // candidate paths that bound to no student
}

// Associate walks candidates in order and binds each one to a student by file
// name: the digit runs in the base name are tried left to right, and the
// first run naming a roster student with no file bound yet wins. A scan like
// "scan_5_002.pdf" therefore still reaches student 002 when "5" names nobody.
// A candidate with no digits or no usable run ends up in Unmatched; every
// candidate lands in exactly one of the two sets.
//
// A number whose student already has a file bound is deliberately not allowed
// to replace the earlier match: the candidate surfaces in Unmatched so the
// operator sees it at the confirmation gate.
func Associate(candidates []string, students map[string]*roster.Student) Result {
	var res Result
	for _, path := range candidates {
		var bound *roster.Student
		for _, number := range numberRuns(path) {
			if s, ok := students[number]; ok && s.Quiz == "" {
				bound = s
				break
			}
		}
		if bound == nil {
			res.Unmatched = append(res.Unmatched, path)
			continue
		}
		bound.Quiz = path
		res.Matched = append(res.Matched, bound)
	}
	return res
}
