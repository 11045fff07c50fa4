package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/engine/resolver"
)

func gameArgs(tokens ...string) *domain.Arguments {
	args := &domain.Arguments{}
	for _, tok := range tokens {
		args.Game = append(args.Game, domain.StringArgument(tok))
	}
	return args
}

func literals(args *domain.Arguments) []string {
	var out []string
	for _, a := range args.Game {
		out = append(out, a.Values...)
	}
	return out
}

func TestArgumentsBuilder_DuplicateTweakReplacedOnce(t *testing.T) {
	v := domain.VersionDescriptor{
		ID: "x",
		MinecraftArguments: "--username ${auth_player_name} --tweakClass forge.Tweaker " +
			"--gameDir ${game_directory} --tweakClass forge.Tweaker",
	}

	b := resolver.NewArgumentsBuilder(v)
	require.NoError(t, b.ReplaceTweakClass("forge", "net.minecraftforge.fml.common.launcher.FMLTweaker", true))
	got := b.Build()

	assert.Equal(t,
		"--username ${auth_player_name} --tweakClass net.minecraftforge.fml.common.launcher.FMLTweaker "+
			"--gameDir ${game_directory}",
		got.MinecraftArguments)
	assert.Contains(t, v.MinecraftArguments, "forge.Tweaker", "input must not be modified")
}

func TestArgumentsBuilder_StructuredMatchesLegacy(t *testing.T) {
	tokens := []string{"--tweakClass", "forge.Tweaker", "--demo", "--tweakClass", "forge.Tweaker"}
	legacy := domain.VersionDescriptor{ID: "l", MinecraftArguments: domain.JoinArguments(tokens)}
	structured := domain.VersionDescriptor{ID: "s", Arguments: gameArgs(tokens...)}

	edit := func(v domain.VersionDescriptor) domain.VersionDescriptor {
		b := resolver.NewArgumentsBuilder(v)
		require.NoError(t, b.ReplaceTweakClass("forge", "new.Tweaker", true))
		b.RemoveTweakClass("optifine")
		require.NoError(t, b.ReplaceTweakClass("liteloader", "lite.Tweaker", true))
		return b.Build()
	}

	want := []string{"--tweakClass", "new.Tweaker", "--demo", "--tweakClass", "lite.Tweaker"}
	assert.Equal(t, want, domain.Tokenize(edit(legacy).MinecraftArguments))
	assert.Equal(t, want, literals(edit(structured).Arguments))
}

func TestArgumentsBuilder_QuotedTokensRoundTrip(t *testing.T) {
	args := `--title "My Game" --tweakClass optifine.OptiFineTweaker --path '/a b/c'`
	b := resolver.NewArgumentsBuilder(domain.VersionDescriptor{ID: "q", MinecraftArguments: args})
	b.RemoveTweakClass("optifine")

	assert.Equal(t, `--title "My Game" --path '/a b/c'`, b.Build().MinecraftArguments)
}

func TestArgumentsBuilder_AppendWhenAbsent(t *testing.T) {
	b := resolver.NewArgumentsBuilder(domain.VersionDescriptor{ID: "a", Arguments: gameArgs("--demo")})
	require.NoError(t, b.ReplaceTweakClass("optifine", resolver.OptiFineTweaker, true))

	assert.Equal(t, []string{"--demo", "--tweakClass", resolver.OptiFineTweaker}, literals(b.Build().Arguments))
}

func TestArgumentsBuilder_NotInPlaceMovesToEnd(t *testing.T) {
	b := resolver.NewArgumentsBuilder(domain.VersionDescriptor{
		ID:        "a",
		Arguments: gameArgs("--tweakClass", "optifine.Old", "--demo"),
	})
	require.NoError(t, b.ReplaceTweakClass("optifine", "optifine.New", false))

	assert.Equal(t, []string{"--demo", "--tweakClass", "optifine.New"}, literals(b.Build().Arguments))
}

func TestArgumentsBuilder_RequiresReplacementInPlace(t *testing.T) {
	b := resolver.NewArgumentsBuilder(domain.VersionDescriptor{ID: "a"})
	err := b.ReplaceTweakClass("forge", "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), resolver.ErrReplacementRequired.Error())
}

func TestArgumentsBuilder_KeepsJVMArguments(t *testing.T) {
	v := domain.VersionDescriptor{ID: "a", Arguments: &domain.Arguments{
		Game: []domain.Argument{domain.StringArgument("--demo")},
		JVM:  []domain.Argument{domain.StringArgument("-Xmx2G")},
	}}
	got := resolver.NewArgumentsBuilder(v).Build()
	require.Len(t, got.Arguments.JVM, 1)
	assert.Equal(t, "-Xmx2G", got.Arguments.JVM[0].Values[0])
}
