package driver

import "strings"

// Export name prefixes and fixed names of canister entry points.
const (
	PrefixQuery          = "canister_query "
	PrefixCompositeQuery = "canister_composite_query "
	PrefixUpdate         = "canister_update "
	ExportInit           = "canister_init"
	ExportPreUpgrade     = "canister_pre_upgrade"
	ExportPostUpgrade    = "canister_post_upgrade"
	IntrospectionMethod  = "__motoko_runtime_information"
)

// Kind classifies an exported function.
type Kind int

const (
	KindIgnored Kind = iota
	KindIntrospection
	KindInit
	KindQuery
	KindUpdate
	KindPreUpgrade
	KindPostUpgrade
)

func (k Kind) String() string {
	switch k {
	case KindIntrospection:
		return "introspection"
	case KindInit:
		return "init"
	case KindQuery:
		return "query"
	case KindUpdate:
		return "update"
	case KindPreUpgrade:
		return "pre_upgrade"
	case KindPostUpgrade:
		return "post_upgrade"
	default:
		return "ignored"
	}
}

// Entry is a classified export. Method is what the guest sees through
// msg_method_name: the suffix after the prefix, empty for init and
// upgrade hooks.
type Entry struct {
	Export string
	Method string
	Kind   Kind
}

// Classify maps an export name to its entry point kind.
func Classify(export string) Entry {
	switch export {
	case ExportInit:
		return Entry{Export: export, Kind: KindInit}
	case ExportPreUpgrade:
		return Entry{Export: export, Kind: KindPreUpgrade}
	case ExportPostUpgrade:
		return Entry{Export: export, Kind: KindPostUpgrade}
	case IntrospectionMethod, PrefixQuery + IntrospectionMethod:
		return Entry{Export: export, Method: IntrospectionMethod, Kind: KindIntrospection}
	}

	if m, ok := strings.CutPrefix(export, PrefixQuery); ok {
		return Entry{Export: export, Method: m, Kind: KindQuery}
	}
	if m, ok := strings.CutPrefix(export, PrefixCompositeQuery); ok {
		return Entry{Export: export, Method: m, Kind: KindQuery}
	}
	if m, ok := strings.CutPrefix(export, PrefixUpdate); ok {
		return Entry{Export: export, Method: m, Kind: KindUpdate}
	}
	return Entry{Export: export, Kind: KindIgnored}
}

// PlanOptions selects the optional phases of a run.
type PlanOptions struct {
	Updates bool
	Upgrade bool
}

// Plan orders the entry points of exports for a run: introspection, then
// init, then queries (and updates when enabled) in export order, then the
// upgrade hooks when enabled.
func Plan(exports []string, opts PlanOptions) []Entry {
	var intro, inits, calls, pre, post []Entry
	for _, name := range exports {
		e := Classify(name)
		switch e.Kind {
		case KindIntrospection:
			intro = append(intro, e)
		case KindInit:
			inits = append(inits, e)
		case KindQuery:
			calls = append(calls, e)
		case KindUpdate:
			if opts.Updates {
				calls = append(calls, e)
			}
		case KindPreUpgrade:
			if opts.Upgrade {
				pre = append(pre, e)
			}
		case KindPostUpgrade:
			if opts.Upgrade {
				post = append(post, e)
			}
		}
	}

	plan := make([]Entry, 0, len(intro)+len(inits)+len(calls)+len(pre)+len(post))
	plan = append(plan, intro...)
	plan = append(plan, inits...)
	plan = append(plan, calls...)
	plan = append(plan, pre...)
	return append(plan, post...)
}
