// ABOUTME: Parses ssh command lines into host/repository context and ranks host patterns
// ABOUTME: Patterns look like host, host:*, host:owner/*, or host:owner/repo[.git]

package hostmatch

import (
	"sort"
	"strings"
)

// Specificity levels returned by Specificity.
const (
	SpecificityHost  = 1 // "host" or "host:*"
	SpecificityOwner = 2 // "host:owner/*"
	SpecificityExact = 3 // "host:owner/repo"
)

// Context describes who an ssh invocation is connecting to.
type Context struct {
	User       string
	Host       string
	GitCommand string // "git-upload-pack" or "git-receive-pack", empty otherwise
	Repository string // as given on the command line, e.g. "owner/repo.git"
}

// Pattern binds a host/repository pattern to a key fingerprint.
type Pattern struct {
	Pattern     string
	Fingerprint string
	Description string
}

// sshFlagsWithValue are ssh options whose value is the following token.
var sshFlagsWithValue = map[string]bool{
	"-b": true, "-c": true, "-D": true, "-E": true, "-e": true, "-F": true,
	"-I": true, "-i": true, "-J": true, "-L": true, "-l": true, "-m": true,
	"-O": true, "-o": true, "-p": true, "-Q": true, "-R": true, "-S": true,
	"-W": true, "-w": true, "-B": true, "-P": true,
}

var gitCommands = map[string]bool{
	"git-upload-pack":  true,
	"git-receive-pack": true,
}

// ParseCommandLine extracts the connection context from an ssh command line.
// The first token is the executable, possibly a quoted path with spaces.
// It returns false if no user@host token is present.
func ParseCommandLine(commandLine string) (*Context, bool) {
	return ParseArgv(tokenize(commandLine))
}

// ParseArgv extracts the connection context from an ssh argument vector,
// such as one read from procfs. Options and the destination are taken as
// given; every later element is tokenized on its own, because git passes
// the remote command as one argument ("git-upload-pack 'owner/repo.git'").
func ParseArgv(argv []string) (*Context, bool) {
	if len(argv) < 2 {
		return nil, false
	}
	args := argv[1:]
	dest := destinationIndex(args)
	if dest < 0 {
		return nil, false
	}

	tokens := append([]string(nil), args[:dest+1]...)
	for _, arg := range args[dest+1:] {
		tokens = append(tokens, tokenize(arg)...)
	}
	return parseArgs(tokens)
}

// destinationIndex returns the index of the user@host argument, skipping
// options and their values, or -1.
func destinationIndex(args []string) int {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			if sshFlagsWithValue[arg] {
				i++
			}
			continue
		}
		if _, _, ok := splitUserHost(arg); ok {
			return i
		}
	}
	return -1
}

func parseArgs(args []string) (*Context, bool) {
	dest := destinationIndex(args)
	if dest < 0 {
		return nil, false
	}
	user, host, _ := splitUserHost(args[dest])
	ctx := &Context{User: user, Host: host}

	rest := args[dest+1:]
	for i, arg := range rest {
		if gitCommands[arg] {
			ctx.GitCommand = arg
			if i+1 < len(rest) {
				ctx.Repository = strings.TrimPrefix(rest[i+1], "/")
			}
			break
		}
	}
	return ctx, true
}

func splitUserHost(token string) (user, host string, ok bool) {
	at := strings.LastIndex(token, "@")
	if at <= 0 || at == len(token)-1 {
		return "", "", false
	}
	user, host = token[:at], token[at+1:]
	if strings.ContainsAny(host, "/@") {
		return "", "", false
	}
	return user, host, true
}

// tokenize splits on whitespace while keeping single- or double-quoted runs
// together. Quotes are removed from the resulting tokens.
func tokenize(s string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inToken bool
	)

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// MatchesPattern reports whether pattern applies to ctx.
// Host and owner comparisons are case-insensitive; repository names are
// compared exactly. A trailing ".git" is stripped once from both sides
// before comparing repositories.
func MatchesPattern(ctx *Context, pattern string) bool {
	if ctx == nil || ctx.Host == "" {
		return false
	}

	host, rest, hasRepo := strings.Cut(pattern, ":")
	if !strings.EqualFold(host, ctx.Host) {
		return false
	}
	if !hasRepo || rest == "*" {
		return true
	}
	if ctx.Repository == "" {
		return false
	}

	if owner, ok := strings.CutSuffix(rest, "/*"); ok {
		repoOwner, _, _ := strings.Cut(ctx.Repository, "/")
		return strings.EqualFold(owner, repoOwner)
	}

	owner, name, ok := strings.Cut(trimGitSuffix(rest), "/")
	repoOwner, repoName, repoOK := strings.Cut(trimGitSuffix(ctx.Repository), "/")
	if !ok || !repoOK {
		return trimGitSuffix(rest) == trimGitSuffix(ctx.Repository)
	}
	return strings.EqualFold(owner, repoOwner) && name == repoName
}

// trimGitSuffix removes one trailing ".git", matched case-insensitively.
func trimGitSuffix(s string) string {
	const suffix = ".git"
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)]
	}
	return s
}

// Specificity ranks a pattern by how narrowly it targets a repository.
func Specificity(pattern string) int {
	_, rest, hasRepo := strings.Cut(pattern, ":")
	switch {
	case !hasRepo || rest == "*":
		return SpecificityHost
	case strings.HasSuffix(rest, "/*"):
		return SpecificityOwner
	default:
		return SpecificityExact
	}
}

// BestMatch returns the most specific pattern matching ctx. Patterns of equal
// specificity keep their configured order.
func BestMatch(ctx *Context, patterns []Pattern) (Pattern, bool) {
	ranked := make([]Pattern, len(patterns))
	copy(ranked, patterns)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Specificity(ranked[i].Pattern) > Specificity(ranked[j].Pattern)
	})

	for _, p := range ranked {
		if MatchesPattern(ctx, p.Pattern) {
			return p, true
		}
	}
	return Pattern{}, false
}
