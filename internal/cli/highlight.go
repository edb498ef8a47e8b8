package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const chromaStyle = "catppuccin-mocha"

// writeYAML writes content to w, with syntax highlighting when w is a
// color-capable terminal.
func writeYAML(w io.Writer, content string) error {
	formatter := yamlFormatter(w)
	if formatter == nil {
		_, err := io.WriteString(w, content)
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		return nil
	}

	iterator, err := chroma.Coalesce(lexers.Get("YAML")).Tokenise(nil, content)
	if err != nil {
		return fmt.Errorf("lexer tokenize: %w", err)
	}

	err = formatter.Format(w, styles.Get(chromaStyle), iterator)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	return nil
}

//nolint:ireturn // Chroma formatters are interfaces.
func yamlFormatter(w io.Writer) chroma.Formatter {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}

	switch termenv.NewOutput(f).ColorProfile() {
	case termenv.TrueColor:
		return formatters.Get("terminal16m")
	case termenv.ANSI256:
		return formatters.Get("terminal256")
	case termenv.ANSI:
		return formatters.Get("terminal8")
	default:
		return nil
	}
}
