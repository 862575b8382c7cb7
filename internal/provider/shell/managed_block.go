package shell

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	blockStartFmt = "# >>> vpsctl %s >>>"
	blockEndFmt   = "# <<< vpsctl %s <<<"
)

// ReadManagedBlock extracts the content between vpsctl managed block markers.
// Returns empty string if the block is not found.
func ReadManagedBlock(content, section string) string {
	start := fmt.Sprintf(blockStartFmt, section)
	end := fmt.Sprintf(blockEndFmt, section)

	startIdx := strings.Index(content, start)
	if startIdx == -1 {
		return ""
	}

	endIdx := strings.Index(content, end)
	if endIdx == -1 {
		return ""
	}

	blockStart := startIdx + len(start)
	if blockStart < len(content) && content[blockStart] == '\n' {
		blockStart++
	}

	if blockStart >= endIdx {
		return ""
	}

	return content[blockStart:endIdx]
}

// WriteManagedBlock replaces (or appends) a managed block in the content.
// If the block already exists, it is replaced. Otherwise, it is appended.
func WriteManagedBlock(content, section, block string) string {
	start := fmt.Sprintf(blockStartFmt, section)
	end := fmt.Sprintf(blockEndFmt, section)

	managedBlock := start + "\n" + block + end + "\n"

	startIdx := strings.Index(content, start)
	if startIdx == -1 {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + "\n" + managedBlock
	}

	endIdx := strings.Index(content, end)
	if endIdx == -1 {
		// Malformed block: start exists but no end. Replace from start to EOF.
		return content[:startIdx] + managedBlock
	}

	afterEnd := endIdx + len(end)
	if afterEnd < len(content) && content[afterEnd] == '\n' {
		afterEnd++
	}

	return content[:startIdx] + managedBlock + content[afterEnd:]
}

// generateEnvBlock produces the content for a managed env block.
func generateEnvBlock(env map[string]string) string {
	return sortedLines(env, "export %s=%q\n")
}

// generateAliasBlock produces the content for a managed aliases block.
func generateAliasBlock(aliases map[string]string) string {
	return sortedLines(aliases, "alias %s=%q\n")
}

func sortedLines(m map[string]string, format string) string {
	if len(m) == 0 {
		return ""
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, format, k, m[k])
	}
	return b.String()
}

// themeLineRe matches the ZSH_THEME=... line of an oh-my-zsh .zshrc.
var themeLineRe = regexp.MustCompile(`(?m)^ZSH_THEME=.*$`)

func themeLine(theme string) string {
	return fmt.Sprintf("ZSH_THEME=%q", theme)
}

// hasTheme reports whether the active ZSH_THEME line selects theme.
func hasTheme(content, theme string) bool {
	return themeLineRe.FindString(content) == themeLine(theme)
}

// setTheme rewrites the first ZSH_THEME line, or prepends one. oh-my-zsh
// reads the theme before sourcing itself, so a new line goes on top.
func setTheme(content, theme string) string {
	line := themeLine(theme)
	if loc := themeLineRe.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + line + content[loc[1]:]
	}
	return line + "\n" + content
}
