package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/zorium-chat/memebot/memegen"
	"github.com/zorium-chat/memebot/telemetry"
)

// Replier delivers a reply into a channel. In production this is the
// directory client.
type Replier interface {
	SendMessage(ctx context.Context, serverID, channelID, content string) error
}

// Catalog is the template cache surface the handlers need.
type Catalog interface {
	Catalog(ctx context.Context) []memegen.Template
	Search(ctx context.Context, query string) []memegen.Template
}

// searchLimit caps rendered result lists.
const searchLimit = 15

// Router maps verbs to handlers. Unknown verbs fall through to generate with
// the whole original text, so "!meme drake hello" works as an implicit
// generate.
type Router struct {
	replier   Replier
	catalog   Catalog
	imageBase string
	randIntN  func(n int) int

	handlers map[string]func(ctx context.Context, dst Destination, args string)
}

// Destination is the reply sink for one command.
type Destination struct {
	ServerID  string
	ChannelID string
}

// NewRouter wires the verb table.
func NewRouter(replier Replier, catalog Catalog, imageBase string) *Router {
	r := &Router{
		replier:   replier,
		catalog:   catalog,
		imageBase: imageBase,
		randIntN:  rand.IntN,
	}
	r.handlers = map[string]func(ctx context.Context, dst Destination, args string){
		"help":      r.handleHelp,
		"generate":  r.handleGenerate,
		"templates": r.handleTemplates,
		"search":    r.handleSearch,
		"random":    r.handleRandom,
		"preview":   r.handlePreview,
	}
	return r
}

// Dispatch parses the command text and runs the matching handler. Handler
// failures become replies or log entries; Dispatch never panics or returns.
func (r *Router) Dispatch(ctx context.Context, dst Destination, text string) {
	inv := ParseInvocation(text)
	handler, known := r.handlers[inv.Verb]
	verb := inv.Verb
	args := inv.RawArgs
	if !known {
		// Implicit generate: the unknown verb is probably a template id.
		verb = "generate"
		handler = r.handleGenerate
		args = strings.TrimSpace(text)
	}
	telemetry.IncVerb(verb)
	ctx, span := telemetry.StartSpan(ctx, "memebot", "command "+verb, telemetry.VerbAttr(verb))
	defer span.End()
	telemetry.TimeFunc(telemetry.CommandDuration, func() {
		handler(ctx, dst, args)
	})
}

// reply sends text to the destination, degrading to a log entry on failure.
func (r *Router) reply(ctx context.Context, dst Destination, text string) {
	if err := r.replier.SendMessage(ctx, dst.ServerID, dst.ChannelID, text); err != nil {
		telemetry.Inc(telemetry.RepliesFailed)
		telemetry.LoggerWithCorr(ctx).Error("failed to send reply",
			slog.String("server", dst.ServerID), slog.String("channel", dst.ChannelID), slog.Any("err", err))
		return
	}
	telemetry.Inc(telemetry.RepliesSent)
}

func (r *Router) handleHelp(ctx context.Context, dst Destination, _ string) {
	r.reply(ctx, dst, "**Meme Bot Commands**\n"+
		"`!meme help` - Show this help message\n"+
		"`!meme generate <template> <top> | <bottom>` - Generate a meme\n"+
		"`!meme templates` - List popular meme templates\n"+
		"`!meme search <query>` - Search templates by name\n"+
		"`!meme random` - Random meme from template list\n"+
		"`!meme random <top> | <bottom>` - Random template with custom text\n"+
		"`!meme preview <template>` - Show blank template preview\n"+
		"\nExample: `!meme generate drake \"using API keys\" | \"using free APIs\"`")
}

func (r *Router) handleGenerate(ctx context.Context, dst Destination, args string) {
	args = strings.TrimSpace(args)
	if args == "" {
		r.reply(ctx, dst, "Usage: `!meme generate <template> <top> | <bottom>`\n"+
			"Example: `!meme generate drake \"coding all night\" | \"sleeping\"`")
		return
	}
	inv := ParseInvocation(args)
	templateID := inv.Verb // first token, already lower-cased
	pair := ParseTextPair(inv.RawArgs)
	// The template id is not validated against the catalog; a bad id just
	// yields a broken image link from the provider.
	r.reply(ctx, dst, memegen.ImageURL(r.imageBase, templateID, pair.Top, pair.Bottom))
}

func (r *Router) handleTemplates(ctx context.Context, dst Destination, _ string) {
	var b strings.Builder
	b.WriteString("**Popular Meme Templates**\n")
	for _, t := range memegen.Popular {
		fmt.Fprintf(&b, "\n`%s` - %s", t.ID, t.Name)
	}
	total := len(r.catalog.Catalog(ctx))
	fmt.Fprintf(&b, "\n\nUse `!meme search <query>` to find more from %d+ templates.", total)
	r.reply(ctx, dst, b.String())
}

func (r *Router) handleSearch(ctx context.Context, dst Destination, args string) {
	query := strings.TrimSpace(args)
	if query == "" {
		r.reply(ctx, dst, "Usage: `!meme search <query>`")
		return
	}
	results := r.catalog.Search(ctx, query)
	if len(results) == 0 {
		r.reply(ctx, dst, fmt.Sprintf("No templates found for **%s**.", query))
		return
	}
	if len(results) > searchLimit {
		results = results[:searchLimit]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Templates matching %q** (showing up to %d)\n", query, searchLimit)
	for _, t := range results {
		fmt.Fprintf(&b, "\n`%s` - %s", t.Slug(), t.Name)
	}
	r.reply(ctx, dst, b.String())
}

func (r *Router) handleRandom(ctx context.Context, dst Destination, args string) {
	catalog := r.catalog.Catalog(ctx)
	if len(catalog) == 0 {
		r.reply(ctx, dst, "Failed to fetch templates. Try again later.")
		return
	}
	t := catalog[r.randIntN(len(catalog))]

	var pair TextPair
	if args = strings.TrimSpace(args); args != "" {
		pair = ParseTextPair(args)
	} else {
		pair.Top, pair.Bottom = t.ExampleText()
	}
	url := memegen.ImageURL(r.imageBase, t.Slug(), pair.Top, pair.Bottom)
	name := t.Name
	if name == "" {
		name = t.Slug()
	}
	r.reply(ctx, dst, fmt.Sprintf("**%s**\n%s", name, url))
}

func (r *Router) handlePreview(ctx context.Context, dst Destination, args string) {
	templateID := strings.ToLower(strings.TrimSpace(args))
	if templateID == "" {
		r.reply(ctx, dst, "Usage: `!meme preview <template>`")
		return
	}
	r.reply(ctx, dst, memegen.BlankImageURL(r.imageBase, templateID))
}
