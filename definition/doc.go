// Package definition holds the static, declarative schema of a skill type:
// ordered phases, ordered steps, each step's validation rules, advisories
// and deliverable names.
//
// Definitions are pure data. They are usually loaded from YAML, where rule
// expressions such as "competitors >= 3" are parsed once into typed [Rule]
// values; nothing re-parses them at evaluation time.
//
//	skill_type: due_diligence
//	phases:
//	  - number: 1
//	    name: Financials
//	    steps:
//	      - number: 1
//	        name: Revenue history
//	        rules:
//	          - type: required_field
//	            rule: revenue_by_year
//	          - type: minimum_count
//	            rule: revenue_by_year >= 3
//	        deliverables: [revenue_summary]
//
// # Invariants
//
// Step numbers are unique across the whole workflow and form the contiguous
// set 1..N in phase order. [Workflow.Validate] reports every violation in a
// single [stepwise.DefinitionInvalidError].
package definition
