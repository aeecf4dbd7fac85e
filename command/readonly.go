package command

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// Verdict is the outcome of classifying a shell command.
type Verdict struct {
	ReadOnly bool
	// Segment is the first part of the command that made it write-like.
	Segment string
	// Reason explains the write-like verdict.
	Reason string
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithExtraSafe controls whether unrecognized commands are write-like (true)
// or read-only (false).
func WithExtraSafe(on bool) ClassifierOption {
	return func(c *Classifier) { c.extraSafe = on }
}

// WithReadOnly adds commands to the read-only allow-list. Commands in the
// write set stay write-like.
func WithReadOnly(cmds ...string) ClassifierOption {
	return func(c *Classifier) {
		for _, cmd := range cmds {
			if cmd = strings.ToLower(strings.TrimSpace(cmd)); cmd != "" {
				c.custom[cmd] = true
			}
		}
	}
}

// WithReadOnlySubcommands marks subcommand paths of a CLI as read-only. A
// path is the space-joined positional arguments ("todos show"); flags are
// ignored. A path ending in " *" also matches any further arguments.
func WithReadOnlySubcommands(name string, paths ...string) ClassifierOption {
	return func(c *Classifier) {
		name = strings.ToLower(name)
		if c.subcommands[name] == nil {
			c.subcommands[name] = make(map[string]bool)
		}
		for _, p := range paths {
			c.subcommands[name][strings.TrimSpace(p)] = true
		}
	}
}

// Classifier decides whether shell commands only read state.
type Classifier struct {
	extraSafe   bool
	custom      map[string]bool
	subcommands map[string]map[string]bool
}

// NewClassifier returns a classifier. extraSafe defaults to true.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		extraSafe:   true,
		custom:      make(map[string]bool),
		subcommands: make(map[string]map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	outputRedirect = regexp.MustCompile(`(?:&|\d)?>{1,2}`)
	inputRedirect  = regexp.MustCompile(`<{1,3}`)
	sedWriteCmd    = regexp.MustCompile(`(?:^|[;{}\n]|/[gpiImMeE0-9]*)\s*[wWe](?:\s+\S|$)`)
	envAssignment  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)
	// awkWrite matches print/printf output redirection and pipes, commands
	// piped into getline, and system().
	awkWrite = regexp.MustCompile(`\bprintf?\b[^;{}\n]*(?:>|\|)|\|\s*&?\s*getline|\bsystem\s*\(`)
)

// shells run the command text given with -c.
var shells = setOf("sh", "bash", "zsh", "dash", "ksh")

// argumentChecked lists the programs whose verdict depends on their
// arguments, besides those with a subcommand allow-list.
var argumentChecked = setOf(
	"pip", "pip3", "npm", "pnpm", "yarn", "python", "python3", "git",
	"sed", "gsed", "awk", "gawk", "mawk", "nawk", "find", "xargs", "sort", "yq",
	"sh", "bash", "zsh", "dash", "ksh", "eval",
)

var writeCommands = setOf(
	"rm", "rmdir", "mv", "cp", "touch", "mkdir", "ln", "unlink", "truncate", "shred",
	"dd", "install", "rsync", "scp", "tee", "patch", "split", "mkfifo", "mknod",
	"chmod", "chown", "chgrp", "chattr", "setfacl",
	"tar", "zip", "unzip", "gzip", "gunzip", "bzip2", "xz", "7z",
	"apt", "apt-get", "dpkg", "yum", "dnf", "rpm", "brew", "pacman", "apk", "snap", "port",
	"cargo", "gem", "bundle", "composer", "npx", "pipx", "poetry", "uv", "conda",
	"make", "cmake", "ninja",
	"kill", "killall", "pkill", "systemctl", "service", "launchctl",
	"reboot", "shutdown", "halt", "poweroff",
	"sudo", "su", "doas", "crontab", "useradd", "userdel", "usermod", "passwd",
	"mount", "umount", "mkfs", "fdisk", "parted",
	"vi", "vim", "nvim", "nano", "emacs", "ed", "wget",
)

var readOnlyCommands = setOf(
	"ls", "ll", "la", "dir", "tree", "pwd", "cd", "pushd", "popd",
	"cat", "head", "tail", "less", "more", "bat", "nl", "tac", "rev",
	"grep", "egrep", "fgrep", "rg", "ag", "ack", "fd", "locate",
	"wc", "uniq", "cut", "tr", "column", "fold", "fmt", "paste", "join", "expand",
	"diff", "cmp", "comm", "file", "stat", "du", "df",
	"which", "whereis", "type", "whoami", "id", "groups", "date", "cal", "uname", "hostname", "uptime",
	"printenv", "ps", "top", "htop", "free", "lsof", "netstat", "ss",
	"echo", "printf", "true", "false", "test", "[", "sleep", "seq", "history",
	"jq", "basename", "dirname", "realpath", "readlink",
	"od", "xxd", "hexdump", "strings", "base64",
	"md5sum", "sha1sum", "sha256sum", "shasum", "cksum",
	"man", "help", "tldr",
	"sort", "yq",
)

// multiPurpose maps CLIs that both read and write to the second tokens
// that only read.
var multiPurpose = map[string]map[string]bool{
	"pip":  setOf("show", "list", "freeze", "check", "search", "help", "inspect", "--version", "-v"),
	"pip3": setOf("show", "list", "freeze", "check", "search", "help", "inspect", "--version", "-v"),
	"npm":  setOf("list", "ls", "ll", "la", "view", "info", "show", "outdated", "search", "help", "explain", "why", "root", "prefix", "--version", "-v"),
	"pnpm": setOf("list", "ls", "why", "outdated", "help", "root", "--version", "-v"),
	"yarn": setOf("list", "info", "why", "outdated", "help", "bin", "--version", "-v"),
}

// pythonReadOnlyModules may be run with `python -m`.
var pythonReadOnlyModules = setOf("json.tool", "pydoc", "platform", "sysconfig", "site", "this")

var gitReadOnly = setOf(
	"status", "log", "diff", "show", "blame", "annotate", "rev-parse", "rev-list",
	"ls-files", "ls-tree", "ls-remote", "cat-file", "describe", "shortlog", "grep",
	"show-ref", "for-each-ref", "name-rev", "merge-base", "whatchanged", "count-objects",
	"check-ignore", "check-attr", "var", "version", "help", "--version", "--help", "range-diff",
	"show-branch", "verify-commit", "verify-tag", "fsck",
)

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// IsReadOnly reports whether cmd only reads state.
func (c *Classifier) IsReadOnly(cmd string) bool {
	return c.Classify(cmd).ReadOnly
}

// Classify decides whether cmd is read-only. Any write-like segment makes the
// whole command write-like.
func (c *Classifier) Classify(cmd string) Verdict {
	if strings.TrimSpace(cmd) == "" {
		return Verdict{ReadOnly: true}
	}

	unquoted := stripQuoted(cmd)
	if m := outputRedirect.FindString(unquoted); m != "" {
		return Verdict{Segment: cmd, Reason: fmt.Sprintf("output redirection %q", m)}
	}
	if m := inputRedirect.FindString(unquoted); m != "" {
		return Verdict{Segment: cmd, Reason: fmt.Sprintf("input redirection %q", m)}
	}

	for _, seg := range splitSegments(cmd) {
		if write, reason := c.classifyTokens(tokenize(seg)); write {
			return Verdict{Segment: seg, Reason: reason}
		}
	}
	return Verdict{ReadOnly: true}
}

// classifyTokens classifies one simple command.
func (c *Classifier) classifyTokens(tokens []string) (bool, string) {
	tokens = skipPrefixes(tokens)
	if len(tokens) == 0 {
		return false, ""
	}

	name := strings.ToLower(filepath.Base(tokens[0]))
	args := tokens[1:]

	if writeCommands[name] {
		return true, fmt.Sprintf("%s modifies files or system state", name)
	}

	if paths, ok := c.subcommands[name]; ok {
		if MatchSubcommand(paths, args) {
			return false, ""
		}
		return true, fmt.Sprintf("%s %s is not a read-only subcommand", name, strings.Join(positionals(args), " "))
	}

	switch name {
	case "pip", "pip3", "npm", "pnpm", "yarn":
		if len(args) > 0 && multiPurpose[name][strings.ToLower(args[0])] {
			return false, ""
		}
		return true, fmt.Sprintf("%s %s may install or modify packages", name, firstOr(args, ""))
	case "python", "python3":
		return c.classifyPython(args)
	case "git":
		return classifyGit(args)
	case "sed", "gsed":
		return classifySed(name, args)
	case "awk", "gawk", "mawk", "nawk":
		return classifyAwk(name, args)
	case "find":
		return c.classifyFind(args)
	case "xargs":
		return c.classifyXargs(args)
	case "sh", "bash", "zsh", "dash", "ksh", "eval":
		return c.classifyShell(name, tokens)
	case "sort":
		if hasFlag(args, "-o", "--output") {
			return true, "sort -o writes its output to a file"
		}
		return false, ""
	case "yq":
		if hasFlag(args, "-i", "--inplace") {
			return true, "yq -i edits files in place"
		}
		return false, ""
	}

	if readOnlyCommands[name] || c.custom[name] {
		return false, ""
	}

	if c.extraSafe {
		return true, fmt.Sprintf("%s is not a known read-only command", name)
	}
	return false, ""
}

func (c *Classifier) classifyPython(args []string) (bool, string) {
	if len(args) == 0 {
		return true, "interactive python can modify state"
	}
	switch args[0] {
	case "--version", "-V", "-c":
		return false, ""
	case "-m":
		if len(args) < 2 {
			return true, "python -m without a module"
		}
		module := args[1]
		if module == "pip" {
			return c.classifyTokens(append([]string{"pip"}, args[2:]...))
		}
		if pythonReadOnlyModules[module] {
			return false, ""
		}
		return true, fmt.Sprintf("python -m %s may modify state", module)
	}
	return true, "running python scripts may modify state"
}

// classifyGit checks git subcommands, skipping global options first.
func classifyGit(args []string) (bool, string) {
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") {
		switch args[i] {
		case "-C", "-c", "--git-dir", "--work-tree", "--namespace":
			i++
		case "--version", "--help":
			return false, ""
		}
		i++
	}
	if i >= len(args) {
		return false, ""
	}
	sub := args[i]
	rest := args[i+1:]

	if gitReadOnly[sub] {
		return false, ""
	}

	write := func() (bool, string) {
		return true, fmt.Sprintf("git %s modifies the repository", sub)
	}

	switch sub {
	case "branch":
		if hasFlag(rest, "-d", "-D", "-m", "-M", "-c", "-C", "-f", "-u", "--delete", "--move", "--copy",
			"--force", "--set-upstream-to", "--unset-upstream", "--edit-description") {
			return write()
		}
		if hasPositional(rest) && !hasFlag(rest, "--list", "-l", "--contains", "--no-contains",
			"--merged", "--no-merged", "--points-at", "--format", "--sort") {
			return write()
		}
		return false, ""
	case "tag":
		if hasFlag(rest, "-d", "-a", "-s", "-u", "-f", "-m", "-F", "--delete", "--annotate", "--sign", "--force") {
			return write()
		}
		if hasPositional(rest) && !hasFlag(rest, "--list", "-l", "--contains", "--no-contains",
			"--merged", "--no-merged", "--points-at", "--sort", "--format") {
			return write()
		}
		return false, ""
	case "remote":
		p := positionals(rest)
		if len(p) == 0 || p[0] == "show" || p[0] == "get-url" {
			return false, ""
		}
		return write()
	case "config":
		if hasFlag(rest, "--get", "--get-all", "--get-regexp", "--get-urlmatch", "--list", "-l") {
			return false, ""
		}
		if p := positionals(rest); len(p) > 0 && (p[0] == "get" || p[0] == "list") {
			return false, ""
		}
		return write()
	case "stash", "worktree", "notes", "reflog", "submodule":
		p := positionals(rest)
		readOnlySub := map[string]map[string]bool{
			"stash":     setOf("list", "show"),
			"worktree":  setOf("list"),
			"notes":     setOf("list", "show"),
			"reflog":    setOf("show", "exists"),
			"submodule": setOf("status", "summary"),
		}[sub]
		// Bare `git reflog` and `git submodule` only list.
		if len(p) == 0 && (sub == "reflog" || sub == "submodule") {
			return false, ""
		}
		if len(p) > 0 && readOnlySub[p[0]] {
			return false, ""
		}
		return write()
	}
	return write()
}

func classifySed(name string, args []string) (bool, string) {
	for _, a := range args {
		if a == "--in-place" || strings.HasPrefix(a, "--in-place=") {
			return true, fmt.Sprintf("%s --in-place edits files", name)
		}
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && strings.ContainsRune(a, 'i') {
			return true, fmt.Sprintf("%s -i edits files in place", name)
		}
	}
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if sedWriteCmd.MatchString(a) {
			return true, fmt.Sprintf("%s script writes files or runs commands", name)
		}
	}
	return false, ""
}

func classifyAwk(name string, args []string) (bool, string) {
	for i, a := range args {
		if a == "-i" && i+1 < len(args) && args[i+1] == "inplace" {
			return true, fmt.Sprintf("%s -i inplace edits files", name)
		}
		if (a == "-i" || a == "-F" || a == "-v") && i+1 < len(args) {
			continue
		}
		if strings.HasPrefix(a, "-F") || (i > 0 && (args[i-1] == "-F" || args[i-1] == "-v")) {
			continue
		}
		if awkWrite.MatchString(a) {
			return true, fmt.Sprintf("%s script writes files or runs commands", name)
		}
	}
	return false, ""
}

func (c *Classifier) classifyFind(args []string) (bool, string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-delete":
			return true, "find -delete removes files"
		case "-fprint", "-fprint0", "-fprintf", "-fls":
			return true, fmt.Sprintf("find %s writes to a file", args[i])
		case "-exec", "-execdir", "-ok", "-okdir":
			var sub []string
			j := i + 1
			for ; j < len(args) && args[j] != ";" && args[j] != "+"; j++ {
				sub = append(sub, args[j])
			}
			if write, reason := c.classifyTokens(sub); write {
				return true, fmt.Sprintf("find %s runs a write command: %s", args[i], reason)
			}
			i = j
		}
	}
	return false, ""
}

// xargsValueFlags take a separate value argument.
var xargsValueFlags = setOf("-I", "-i", "-n", "-P", "-L", "-l", "-s", "-d", "-E", "-e", "-a")

func (c *Classifier) classifyXargs(args []string) (bool, string) {
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") {
		if xargsValueFlags[args[i]] {
			i++
		}
		i++
	}
	if i >= len(args) {
		// xargs defaults to echo.
		return false, ""
	}
	if write, reason := c.classifyTokens(args[i:]); write {
		return true, "xargs runs a write command: " + reason
	}
	if prog := skipPrefixes(args[i:]); len(prog) > 0 {
		name := strings.ToLower(filepath.Base(prog[0]))
		if argumentChecked[name] || c.subcommands[name] != nil {
			return true, fmt.Sprintf("xargs supplies the arguments of %s at run time", name)
		}
	}
	return false, ""
}

// classifyShell classifies the command text of `sh -c` and `eval`.
func (c *Classifier) classifyShell(name string, tokens []string) (bool, string) {
	payload, ok := ShellPayload(tokens)
	if !ok {
		if name != "eval" && hasFlag(tokens[1:], "--version", "--help") {
			return false, ""
		}
		return true, fmt.Sprintf("%s runs a script or an interactive shell", name)
	}
	if v := c.Classify(payload); !v.ReadOnly {
		return true, fmt.Sprintf("%s runs a write command: %s", name, v.Reason)
	}
	return false, ""
}

// ShellPayload returns the command text a nested shell runs: the argument of
// `sh -c` (bash, zsh and friends alike) or the words of `eval`. words starts
// at the program name.
func ShellPayload(words []string) (string, bool) {
	if len(words) == 0 {
		return "", false
	}
	name := strings.ToLower(filepath.Base(words[0]))
	if name == "eval" {
		return strings.Join(words[1:], " "), len(words) > 1
	}
	if !shells[name] {
		return "", false
	}

	args := words[1:]
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-o" || a == "-O" || a == "+o" || a == "+O" || a == "--rcfile" || a == "--init-file":
			i++
		case strings.HasPrefix(a, "--"):
		case strings.HasPrefix(a, "-") && strings.ContainsRune(a, 'c'):
			if i+1 < len(args) {
				return args[i+1], true
			}
			return "", false
		case strings.HasPrefix(a, "-") || strings.HasPrefix(a, "+"):
		default:
			return "", false
		}
	}
	return "", false
}

// skipPrefixes drops leading VAR=value assignments, group braces and the
// time/nohup/env wrappers.
func skipPrefixes(tokens []string) []string {
	for len(tokens) > 0 {
		t := tokens[0]
		switch {
		case envAssignment.MatchString(t):
			tokens = tokens[1:]
		case t == "time" || t == "nohup" || t == "{" || t == "}" || t == "!":
			tokens = tokens[1:]
		case t == "env":
			tokens = tokens[1:]
			for len(tokens) > 0 && strings.HasPrefix(tokens[0], "-") {
				if tokens[0] == "-u" && len(tokens) > 1 {
					tokens = tokens[1:]
				}
				tokens = tokens[1:]
			}
		default:
			return tokens
		}
	}
	return tokens
}

// MatchSubcommand reports whether the positional arguments of args form one
// of paths, using the rules of WithReadOnlySubcommands.
func MatchSubcommand(paths map[string]bool, args []string) bool {
	pos := positionals(args)
	for i := len(pos); i >= 0; i-- {
		prefix := strings.Join(pos[:i], " ")
		if i == len(pos) && paths[prefix] {
			return true
		}
		wildcard := "*"
		if prefix != "" {
			wildcard = prefix + " *"
		}
		if paths[wildcard] {
			return true
		}
	}
	return false
}

// Segments splits cmd into its simple commands, the way Classify sees them.
func Segments(cmd string) []string {
	return splitSegments(cmd)
}

// Words tokenizes a simple command and drops leading assignments and
// wrappers, leaving the program name first.
func Words(segment string) []string {
	return skipPrefixes(tokenize(segment))
}

func tokenize(seg string) []string {
	tokens, err := shlex.Split(seg)
	if err != nil {
		return strings.Fields(seg)
	}
	return tokens
}

func hasFlag(args []string, flags ...string) bool {
	for _, a := range args {
		name := a
		if i := strings.IndexByte(a, '='); i > 0 && strings.HasPrefix(a, "--") {
			name = a[:i]
		}
		for _, f := range flags {
			if name == f {
				return true
			}
		}
	}
	return false
}

func positionals(args []string) []string {
	var out []string
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			out = append(out, a)
		}
	}
	return out
}

func hasPositional(args []string) bool {
	return len(positionals(args)) > 0
}

func firstOr(args []string, def string) string {
	if len(args) == 0 {
		return def
	}
	return args[0]
}

// stripQuoted blanks out quoted text and escaped characters so operators
// inside string literals are not mistaken for shell syntax.
func stripQuoted(cmd string) string {
	var b strings.Builder
	inSingle, inDouble := false, false
	for i := 0; i < len(cmd); i++ {
		ch := cmd[i]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
				b.WriteByte(ch)
			}
		case ch == '\\' && i+1 < len(cmd):
			i++
		case inDouble:
			if ch == '"' {
				inDouble = false
				b.WriteByte(ch)
			}
		case ch == '\'':
			inSingle = true
			b.WriteByte(ch)
		case ch == '"':
			inDouble = true
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// scanFrame is one nesting level while splitting: the top level, a $(...)
// substitution or a backtick substitution.
type scanFrame struct {
	buf      strings.Builder
	inDouble bool
	closer   byte
}

// splitSegments splits cmd into simple commands at |, ||, &&, ;, &, newlines,
// subshell parentheses and command substitutions. Quoted text is kept intact.
func splitSegments(cmd string) []string {
	var segs []string
	flush := func(f *scanFrame) {
		if s := strings.TrimSpace(f.buf.String()); s != "" {
			segs = append(segs, s)
		}
		f.buf.Reset()
	}

	stack := []*scanFrame{{}}
	inSingle := false
	for i := 0; i < len(cmd); i++ {
		f := stack[len(stack)-1]
		ch := cmd[i]

		if inSingle {
			f.buf.WriteByte(ch)
			if ch == '\'' {
				inSingle = false
			}
			continue
		}

		switch {
		case ch == '\\' && i+1 < len(cmd):
			f.buf.WriteByte(ch)
			f.buf.WriteByte(cmd[i+1])
			i++
		case ch == '\'' && !f.inDouble:
			inSingle = true
			f.buf.WriteByte(ch)
		case ch == '"':
			f.inDouble = !f.inDouble
			f.buf.WriteByte(ch)
		case strings.HasPrefix(cmd[i:], "$(("):
			// Arithmetic expansion is not a command.
			end := strings.Index(cmd[i:], "))")
			if end < 0 {
				end = len(cmd) - i - 2
			}
			f.buf.WriteString("0")
			i += end + 1
		case ch == '$' && i+1 < len(cmd) && cmd[i+1] == '(':
			stack = append(stack, &scanFrame{closer: ')'})
			i++
		case ch == '`' && f.closer == '`':
			flush(f)
			stack = stack[:len(stack)-1]
		case ch == '`':
			stack = append(stack, &scanFrame{closer: '`'})
		case f.inDouble:
			f.buf.WriteByte(ch)
		case ch == ')' && f.closer == ')':
			flush(f)
			stack = stack[:len(stack)-1]
		case ch == '(' || ch == ')':
			flush(f)
		case ch == '|' || ch == ';' || ch == '&' || ch == '\n':
			flush(f)
			if i+1 < len(cmd) && cmd[i+1] == ch && ch != '\n' {
				i++
			}
		default:
			f.buf.WriteByte(ch)
		}
	}
	for j := len(stack) - 1; j >= 0; j-- {
		flush(stack[j])
	}
	return segs
}
