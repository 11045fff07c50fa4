package resolver

import (
	"slices"
	"strings"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
)

// TweakClassFlag introduces a bootstrap hook in the game arguments.
const TweakClassFlag = "--tweakClass"

// ErrReplacementRequired is returned when an in-place replacement names no replacement class.
var ErrReplacementRequired = zerr.New("replacement tweak class is required in place")

// ArgumentsBuilder edits the --tweakClass pairs of a descriptor. The legacy flat argument string
// and the structured game arguments are edited with the same rules; unrelated tokens are kept
// byte for byte.
type ArgumentsBuilder struct {
	version domain.VersionDescriptor
	legacy  []string
	game    []domain.Argument
	// useLegacy is set when the descriptor carries a flat argument string.
	useLegacy bool
}

// NewArgumentsBuilder starts editing v.
func NewArgumentsBuilder(v domain.VersionDescriptor) *ArgumentsBuilder {
	b := &ArgumentsBuilder{version: v}
	if v.MinecraftArguments != "" {
		b.legacy = domain.Tokenize(v.MinecraftArguments)
		b.useLegacy = true
	}
	if v.Arguments != nil {
		b.game = slices.Clone(v.Arguments.Game)
	}
	return b
}

// RemoveTweakClass drops every tweak pair whose class contains target.
func (b *ArgumentsBuilder) RemoveTweakClass(target string) {
	_ = b.ReplaceTweakClass(target, "", false)
}

// ReplaceTweakClass rewrites the tweak pairs whose class contains target, case-insensitively.
// In place, the first matching pair keeps its position and gets the replacement while later
// matches are removed. Otherwise every match is removed and the replacement is appended. A
// replacement that replaced nothing is appended as a new pair. An empty replacement only removes.
func (b *ArgumentsBuilder) ReplaceTweakClass(target, replacement string, inPlace bool) error {
	if replacement == "" && inPlace {
		return zerr.With(ErrReplacementRequired, "target", target)
	}
	target = strings.ToLower(target)
	replaced := false

	if b.useLegacy {
		for i := 0; i+1 < len(b.legacy); i++ {
			if b.legacy[i] != TweakClassFlag || !strings.Contains(strings.ToLower(b.legacy[i+1]), target) {
				continue
			}
			if !replaced && inPlace {
				b.legacy[i+1] = replacement
				replaced = true
				continue
			}
			b.legacy = slices.Delete(b.legacy, i, i+2)
			i--
		}
	}

	for i := 0; i+1 < len(b.game); i++ {
		flag, value := b.game[i], b.game[i+1]
		if !flag.IsLiteral() || !value.IsLiteral() {
			continue
		}
		if flag.Values[0] != TweakClassFlag || !strings.Contains(strings.ToLower(value.Values[0]), target) {
			continue
		}
		if !replaced && inPlace {
			b.game[i+1] = domain.StringArgument(replacement)
			replaced = true
			continue
		}
		b.game = slices.Delete(b.game, i, i+2)
		i--
	}

	if !replaced && replacement != "" {
		if b.useLegacy && len(b.game) == 0 {
			b.legacy = append(b.legacy, TweakClassFlag, replacement)
		} else {
			b.game = append(b.game, domain.StringArgument(TweakClassFlag), domain.StringArgument(replacement))
		}
	}
	return nil
}

// Build returns a copy of the descriptor carrying the edited arguments.
func (b *ArgumentsBuilder) Build() domain.VersionDescriptor {
	out := b.version
	if b.useLegacy {
		out = out.WithMinecraftArguments(domain.JoinArguments(b.legacy))
	}

	if b.version.Arguments == nil && len(b.game) == 0 {
		return out
	}
	args := domain.Arguments{Game: b.game}
	if b.version.Arguments != nil {
		args.JVM = b.version.Arguments.JVM
	}
	return out.WithArguments(&args)
}
