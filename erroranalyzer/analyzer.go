// Package erroranalyzer classifies a dialect's native error message into an
// ErrorAnalysis and proposes corrections, in the style of surfacing
// execution failures back into the retry loop.
package erroranalyzer

import (
	"regexp"
	"sort"
	"strings"

	"sqlnexus/core/model"
)

var (
	columnQualifiedRe = regexp.MustCompile(`(?i)column\s+"?(\w+)\.(\w+)"?\s+does not exist`)
	columnBareRe      = regexp.MustCompile(`(?i)column\s+"?(\w+)"?\s+does not exist`)
	tableRe           = regexp.MustCompile(`(?i)(?:table|relation)\s+"?(\w+)"?\s+does not exist`)
	typeMismatchRe    = regexp.MustCompile(`(?i)operator does not exist|no operator matches`)
	columnPairRe      = regexp.MustCompile(`(\w+)\.(\w+)\s*=\s*(\w+)\.(\w+)`)
	syntaxRe          = regexp.MustCompile(`(?i)syntax error at or near\s+"?(\w+)"?`)
)

// Analyze classifies errMsg against snap and returns a structured diagnosis
// with deterministic, ordered hints.
func Analyze(errMsg string, snap *model.SchemaSnapshot) *model.ErrorAnalysis {
	if snap != nil && len(snap.TablesByName) == 0 {
		snap.Normalize()
	}

	switch {
	case columnQualifiedRe.MatchString(errMsg):
		return analyzeMissingQualifiedColumn(errMsg, snap)
	case columnBareRe.MatchString(errMsg):
		return analyzeMissingBareColumn(errMsg)
	case tableRe.MatchString(errMsg):
		return analyzeMissingTable(errMsg, snap)
	case typeMismatchRe.MatchString(errMsg):
		return analyzeTypeMismatch(errMsg, snap)
	case syntaxRe.MatchString(errMsg):
		return analyzeSyntax(errMsg)
	default:
		return &model.ErrorAnalysis{
			Kind:  model.ErrUnknown,
			Hints: []string{"Review the error message and check the SQL against the schema."},
		}
	}
}

func analyzeMissingQualifiedColumn(errMsg string, snap *model.SchemaSnapshot) *model.ErrorAnalysis {
	m := columnQualifiedRe.FindStringSubmatch(errMsg)
	alias, col := m[1], m[2]

	table := resolveAlias(alias, snap)
	a := &model.ErrorAnalysis{
		Kind:                 model.ErrMissingColumn,
		OffendingIdentifiers: []string{alias + "." + col},
	}
	if table == "" {
		a.Hints = []string{"Column \"" + alias + "." + col + "\" does not exist. Check the table schema carefully."}
		return a
	}

	cols := columnNames(snap, table)
	suggestions := similar(col, cols, 2)
	a.Suggestions = suggestions
	a.Hints = append(a.Hints, "Column \""+alias+"."+col+"\" does not exist on "+table+".")
	if len(cols) > 0 {
		a.Hints = append(a.Hints, "Table "+table+" has columns: "+strings.Join(capList(cols, 10), ", "))
	}
	if len(suggestions) > 0 {
		a.Hints = append(a.Hints, "Did you mean: "+strings.Join(capList(suggestions, 3), ", ")+"?")
	}
	return a
}

func analyzeMissingBareColumn(errMsg string) *model.ErrorAnalysis {
	m := columnBareRe.FindStringSubmatch(errMsg)
	col := m[1]
	return &model.ErrorAnalysis{
		Kind:                 model.ErrMissingColumn,
		OffendingIdentifiers: []string{col},
		Hints:                []string{"Column \"" + col + "\" does not exist. Review the schema for the correct column name."},
	}
}

func analyzeMissingTable(errMsg string, snap *model.SchemaSnapshot) *model.ErrorAnalysis {
	m := tableRe.FindStringSubmatch(errMsg)
	problematic := m[1]

	actual := tableLeafNames(snap)
	suggestions := similar(problematic, actual, 3)

	a := &model.ErrorAnalysis{
		Kind:                 model.ErrMissingTable,
		OffendingIdentifiers: []string{problematic},
		Suggestions:          suggestions,
	}
	a.Hints = append(a.Hints, "Table \""+problematic+"\" does not exist.")
	if len(suggestions) == 0 {
		a.Hints = append(a.Hints, "Available tables: "+strings.Join(capList(actual, 8), ", "))
		return a
	}
	for _, t := range capList(suggestions, 2) {
		cols := columnNames(snap, t)
		a.Hints = append(a.Hints, "Did you mean "+t+"("+strings.Join(capList(cols, 5), ", ")+")?")
	}
	return a
}

func analyzeTypeMismatch(errMsg string, snap *model.SchemaSnapshot) *model.ErrorAnalysis {
	a := &model.ErrorAnalysis{Kind: model.ErrTypeMismatch}
	a.Hints = append(a.Hints, "Type mismatch: the compared operands have incompatible types.")

	pairs := columnPairRe.FindAllStringSubmatch(errMsg, -1)
	if len(pairs) == 0 {
		a.Hints = append(a.Hints, "Cast one side to match the other, e.g. col::TYPE or CAST(col AS TYPE).")
		return a
	}

	p := pairs[0]
	t1, c1, t2, c2 := p[1], p[2], p[3], p[4]
	a.OffendingIdentifiers = []string{t1 + "." + c1, t2 + "." + c2}

	type1 := columnType(snap, t1, c1)
	type2 := columnType(snap, t2, c2)
	if type1 != "" {
		a.ColumnTypesCited = append(a.ColumnTypesCited, t1+"."+c1+":"+type1)
	}
	if type2 != "" {
		a.ColumnTypesCited = append(a.ColumnTypesCited, t2+"."+c2+":"+type2)
	}

	if type1 != "" {
		cast := t2 + "." + c2 + "::" + strings.ToUpper(type1)
		a.Suggestions = append(a.Suggestions, t1+"."+c1+" = "+cast)
	}
	if type2 != "" {
		cast := "CAST(" + t1 + "." + c1 + " AS " + strings.ToUpper(type2) + ")"
		a.Suggestions = append(a.Suggestions, cast+" = "+t2+"."+c2)
	}
	for _, s := range a.Suggestions {
		a.Hints = append(a.Hints, "Try: "+s)
	}
	return a
}

func analyzeSyntax(errMsg string) *model.ErrorAnalysis {
	m := syntaxRe.FindStringSubmatch(errMsg)
	word := ""
	if len(m) > 1 {
		word = m[1]
	}
	a := &model.ErrorAnalysis{Kind: model.ErrSyntax}
	if word != "" {
		a.OffendingIdentifiers = []string{word}
		a.Hints = []string{"Syntax error near \"" + word + "\". Check keyword usage, parentheses, and quoting."}
	} else {
		a.Hints = []string{"SQL syntax error. Check the query against the target dialect's grammar."}
	}
	return a
}

// resolveAlias resolves an alias/prefix token to an actual table name:
// case-insensitive exact match on a bare table name, else a starts-with
// match, else a match on the initials of the table's underscore-split
// words. Schema-qualified names are not compared.
func resolveAlias(alias string, snap *model.SchemaSnapshot) string {
	if snap == nil {
		return ""
	}
	aliasLower := strings.ToLower(alias)

	for _, name := range tableLeafNames(snap) {
		if strings.ToLower(name) == aliasLower {
			return name
		}
	}
	for _, name := range tableLeafNames(snap) {
		if strings.HasPrefix(strings.ToLower(name), aliasLower) {
			return name
		}
	}
	for _, name := range tableLeafNames(snap) {
		if initials(name) == aliasLower {
			return name
		}
	}
	return ""
}

func initials(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, p := range parts {
		if p != "" {
			b.WriteByte(strings.ToLower(p)[0])
		}
	}
	return b.String()
}

// tableLeafNames returns bare table names (not schema-qualified) in a
// deterministic, sorted order.
func tableLeafNames(snap *model.SchemaSnapshot) []string {
	if snap == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, t := range snap.TablesByName {
		if !seen[t.TableName] {
			seen[t.TableName] = true
			names = append(names, t.TableName)
		}
	}
	sort.Strings(names)
	return names
}

func columnNames(snap *model.SchemaSnapshot, tableName string) []string {
	if snap == nil {
		return nil
	}
	for _, t := range snap.TablesByName {
		if t.TableName == tableName {
			cols := make([]string, 0, len(t.Columns))
			for _, c := range t.Columns {
				cols = append(cols, c.Name)
			}
			return cols
		}
	}
	return nil
}

func columnType(snap *model.SchemaSnapshot, tableName, colName string) string {
	if snap == nil {
		return ""
	}
	for _, t := range snap.TablesByName {
		if t.TableName != tableName {
			continue
		}
		for _, c := range t.Columns {
			if c.Name == colName {
				return c.DataType
			}
		}
	}
	return ""
}

func capList(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// similar returns candidates within threshold edit distance of target,
// ordered by ascending distance then alphabetically, case-insensitive,
// with exact substring matches (distance 0) preferred.
func similar(target string, candidates []string, threshold int) []string {
	targetLower := strings.ToLower(target)
	type scored struct {
		name     string
		distance int
	}
	var results []scored
	for _, c := range candidates {
		cLower := strings.ToLower(c)
		dist := levenshtein(targetLower, cLower)
		if strings.Contains(cLower, targetLower) || strings.Contains(targetLower, cLower) {
			dist = 0
		}
		if dist <= threshold {
			results = append(results, scored{name: c, distance: dist})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].distance != results[j].distance {
			return results[i].distance < results[j].distance
		}
		return results[i].name < results[j].name
	})
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.name)
	}
	return out
}

// levenshtein computes the classic edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
