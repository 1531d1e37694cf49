package reports

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Printer escreve relatórios para o operador. As cores dependem do destino:
// em arquivo ou pipe a saída sai sem códigos ANSI.
type Printer struct {
	w io.Writer

	title   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
	maxRows int
}

// NewPrinter cria um Printer para w
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:      w,
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		ok:     r.NewStyle().Foreground(lipgloss.Color("82")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("196")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// SetMaxRows limita as linhas impressas por tabela (0 = todas)
func (p *Printer) SetMaxRows(n int) {
	p.maxRows = n
}

// Title cabeçalho de seção
func (p *Printer) Title(format string, args ...any) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.title.Render(fmt.Sprintf(format, args...)))
}

// OK linha de sucesso
func (p *Printer) OK(format string, args ...any) {
	fmt.Fprintln(p.w, p.ok.Render("[OK]")+" "+fmt.Sprintf(format, args...))
}

// Warn linha de aviso
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.warn.Render("[AVISO]")+" "+fmt.Sprintf(format, args...))
}

// Fail linha de erro
func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintln(p.w, p.fail.Render("[ERRO]")+" "+fmt.Sprintf(format, args...))
}

// Info linha neutra
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// KeyValue par rótulo/valor alinhado
func (p *Printer) KeyValue(key string, value any) {
	fmt.Fprintf(p.w, "  %-28s %v\n", key+":", value)
}

// Table imprime a Sheet. Sheet vazia imprime só o aviso.
func (p *Printer) Table(sheet Sheet) {
	if len(sheet.Rows) == 0 {
		fmt.Fprintln(p.w, p.dim.Render("(nenhum registro)"))
		return
	}

	rows := sheet.Rows
	truncated := 0
	if p.maxRows > 0 && len(rows) > p.maxRows {
		truncated = len(rows) - p.maxRows
		rows = rows[:p.maxRows]
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.dim).
		Headers(sheet.Headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			return p.cell
		})
	for _, row := range rows {
		t.Row(formatRow(row)...)
	}

	fmt.Fprintln(p.w, t.String())
	if truncated > 0 {
		fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf("... mais %d linhas (use -xlsx para a lista completa)", truncated)))
	}
	fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf("%d registros", len(sheet.Rows))))
}

func formatRow(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		switch val := v.(type) {
		case nil:
			out[i] = "-"
		case string:
			out[i] = val
		default:
			out[i] = fmt.Sprint(val)
		}
	}
	return out
}
