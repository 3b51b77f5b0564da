// Package ui renders operator-facing output: status lines, progress bars
// and tables. Diagnostics go through logrus instead.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

var (
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true)
)

// Console writes styled messages. The zero value is not usable; use New.
type Console struct {
	out   io.Writer
	err   io.Writer
	quiet bool
}

// New creates a console over the given streams.
func New(out, errOut io.Writer) *Console {
	return &Console{out: out, err: errOut}
}

// Stdio returns a console on the process's standard streams.
func Stdio() *Console {
	return New(os.Stdout, os.Stderr)
}

// Quiet suppresses progress bars.
func (c *Console) Quiet(q bool) *Console {
	c.quiet = q
	return c
}

// Out is the stream for regular output.
func (c *Console) Out() io.Writer { return c.out }

func (c *Console) Info(format string, args ...any) {
	fmt.Fprintln(c.out, fmt.Sprintf(format, args...))
}

func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintln(c.err, warnStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Success(format string, args ...any) {
	fmt.Fprintln(c.out, successStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Error(format string, args ...any) {
	fmt.Fprintln(c.err, errorStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Heading(format string, args ...any) {
	fmt.Fprintln(c.out, headingStyle.Render(fmt.Sprintf(format, args...)))
}

// Progress returns a byte progress bar for a transfer of total bytes. The
// bar implements io.Writer, so it can sit behind an io.TeeReader.
func (c *Console) Progress(total int64, description string) *progressbar.ProgressBar {
	w := c.err
	if c.quiet {
		w = io.Discard
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(fmt.Sprintf("%s %s", description, humanize.Bytes(uint64(total)))),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

// Table renders rows under header.
func (c *Console) Table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(c.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
}

// Bytes formats a size for humans.
func Bytes(n int64) string {
	return humanize.Bytes(uint64(n))
}
