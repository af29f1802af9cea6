// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/remi/quizshare/internal/reconcile"
	"github.com/remi/quizshare/internal/roster"
)

// boxWidth is the default width for formatted output boxes
const boxWidth = 72

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintStudents outputs one line per roster entry, in file order.
func (p *Printer) PrintStudents(r *roster.Roster) {
	var sb strings.Builder
	for _, number := range r.Order {
		s := r.Students[number]
		sb.WriteString(fmt.Sprintf("%-15.15s %-15.15s %-5.5s %-4.4s %-12.12s %s\n",
			s.Surname, s.Name, s.Group, s.Number, s.Account, s.Link))
	}
	p.printBox(fmt.Sprintf("Roster (%d students)", len(r.Students)), strings.TrimRight(sb.String(), "\n"))
}

// PrintMatches outputs the matched students with their quiz files.
func (p *Printer) PrintMatches(matched []*roster.Student) {
	var sb strings.Builder
	for _, s := range matched {
		sb.WriteString(fmt.Sprintf("%-15.15s %-15.15s n°%-4.4s %s\n",
			s.Surname, s.Name, s.Number, s.Quiz))
	}
	p.printBox(fmt.Sprintf("Matched files (%d)", len(matched)), strings.TrimRight(sb.String(), "\n"))
}

// PrintOutcomes outputs a per-student summary of the reconciliation pass.
func (p *Printer) PrintOutcomes(outcomes []reconcile.Outcome) {
	var sb strings.Builder
	failed := 0
	for _, o := range outcomes {
		status := "ok"
		if o.Failed() {
			status = fmt.Sprintf("%d error(s)", len(o.Errors))
			failed++
		}
		sb.WriteString(fmt.Sprintf("n°%-4.4s %-10s %s\n", o.Student.Number, status, o.Student.Link))
	}
	title := fmt.Sprintf("Outcomes (%d students, %d with errors)", len(outcomes), failed)
	p.printBox(title, strings.TrimRight(sb.String(), "\n"))
}
