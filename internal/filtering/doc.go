// Package filtering selects package sources by name, type and provided package.
//
// Names are matched with glob patterns (gobwas/glob, '*' also matches '.' and
// '/'), types and package names with exact string matching. Every criterion
// supports include and exclude lists:
//
//  1. If exclude values are specified and match -> exclude (precedence)
//  2. If include values are specified and match -> include
//  3. If include values are specified but no match -> exclude
//  4. If only exclude values are specified and no match -> include
//  5. If nothing is specified -> include
//
// A source must pass every criterion to be selected.
//
//	svc := filtering.NewDefaultFilterService()
//	selected, err := svc.Apply(ctx, cfgs, &filtering.Filter{
//		Names:    filtering.Rule{Include: []string{"team-*"}},
//		Types:    filtering.Rule{Exclude: []string{"fs"}},
//		Packages: filtering.Rule{Include: []string{"atoms.hello"}},
//	})
package filtering
