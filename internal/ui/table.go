package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/questwatch/internal/store"
)

// Fixed widths of every column except the question text.
var fixedColumns = []table.Column{
	{Title: "Asked", Width: 10},
	{Title: "Potential", Width: 9},
	{Title: "Views", Width: 11},
	{Title: "+Views", Width: 9},
	{Title: "Answers", Width: 8},
	{Title: "+Answers", Width: 8},
	{Title: "Watched", Width: 7},
}

// minQuestionWidth keeps the question column readable on narrow terminals.
const minQuestionWidth = 20

// cellPadding is the horizontal padding table.DefaultStyles adds per cell.
const cellPadding = 2

// columns sizes the question column to fill width.
func columns(width int) []table.Column {
	used := cellPadding
	for _, c := range fixedColumns {
		used += c.Width + cellPadding
	}
	question := width - used
	if question < minQuestionWidth {
		question = minQuestionWidth
	}

	cols := make([]table.Column, 0, len(fixedColumns)+1)
	cols = append(cols, table.Column{Title: "Question", Width: question})
	return append(cols, fixedColumns...)
}

// rowFor renders one snapshot in column order.
func rowFor(snap store.Snapshot, watched bool) table.Row {
	date := snap.Date
	if date == "" {
		date = "-"
	}
	mark := "No"
	if watched {
		mark = "Yes"
	}
	return table.Row{
		snap.DisplayText,
		date,
		fmt.Sprintf("%.1f", snap.PotentialScore),
		humanize.Comma(snap.ViewTotal),
		signed(snap.ViewIncrement),
		humanize.Comma(snap.AnswerTotal),
		signed(snap.AnswerIncrement),
		mark,
	}
}

// signed formats n with thousands separators and an explicit plus sign.
func signed(n int64) string {
	if n > 0 {
		return "+" + humanize.Comma(n)
	}
	return humanize.Comma(n)
}
