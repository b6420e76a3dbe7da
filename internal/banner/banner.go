package banner

import (
	"pixload/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
    ____  _ _  __ ____    ___    ___    ___
   / __ \(_) |/ // / /   / _ \  / _ |  / _ \
  / /_/ / />   </ / /__ / // / / __ | / // /
 / .___/_//_/|_/_/____/ \___/ /_/ |_|/____/
/_/`

	return "\n" + style.Render(ascii) + "\n"
}
