package control

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Control lines are verbs followed by arguments, several per line separated
// by ';'. A '#' starts a comment.
//
//	on 3; pulse 4 120ms
//	board 1 0xA5
var commandLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Duration", Pattern: `[0-9]+(?:\.[0-9]+)?(?:ns|us|µs|ms|s|m|h)\b`},
	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "Bin", Pattern: `0[bB][01]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z0-9_-]*`},
	{Name: "Semicolon", Pattern: `;`},
})

type script struct {
	Commands []*command `parser:"( @@ )? ( Semicolon ( @@ )? )*"`
}

type command struct {
	Pos  lexer.Position
	Verb string `parser:"@Ident"`
	Args []*arg `parser:"@@*"`
}

type arg struct {
	Duration *string `parser:"  @Duration"`
	Number   *string `parser:"| @( Hex | Bin | Int )"`
	Word     *string `parser:"| @Ident"`
}

func buildParser() (*participle.Parser[script], error) {
	return participle.Build[script](
		participle.Lexer(commandLexer),
		participle.Elide("Comment", "Whitespace"),
	)
}
