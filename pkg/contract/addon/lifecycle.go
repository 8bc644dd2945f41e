package addon

const (
	// HookLoaded fires once the host has loaded every integration, before output starts.
	HookLoaded = "wp_loaded"

	// HookHead fires while the document head is rendered.
	HookHead = "wp_head"

	// HookFooter fires while the document footer is rendered.
	HookFooter = "wp_footer"
)

const (
	// SurfaceContent is the primary content body.
	SurfaceContent Surface = "the_content"

	// SurfaceWidgetText is the text of sidebar/footer text widgets.
	SurfaceWidgetText Surface = "widget_text"

	// SurfaceScriptTag is the markup of script tags the host emits for enqueued scripts.
	SurfaceScriptTag Surface = "script_loader_tag"
)

// TextSurfaces lists the surfaces content rewriters are registered against.
var TextSurfaces = []Surface{SurfaceContent, SurfaceWidgetText}

// Surface names a piece of rendered text the host passes through filters.
type Surface string

// LastPriority is the filter priority rewriters use so they see the output
// of every other content transform.
const LastPriority = 1000

// DefaultPriority is the priority hosts assume when none is given.
const DefaultPriority = 10
