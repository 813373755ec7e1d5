// Package query provides the immutable, chainable query builder resources expose.
//
// A resource describes an endpoint with a Spec: where to search, how filters
// become a request payload, how to count and how to turn a raw record into a
// typed value. Users then chain builder methods, each returning a new Query:
//
//	q := awards.Search().
//		WithFilter("time_period", periods).
//		OrderBy("Award Amount", query.Desc).
//		Limit(150)
//
// Nothing is sent until a terminal operation runs: Count, First, At, Slice,
// All or Records. Invalid builder input (an empty filter key, a negative
// limit) is recorded on the returned query and reported by the first terminal
// operation as a *ValidationError, before any network call.
//
// Derived queries share their filter history, so branching a base query is
// cheap and never affects the base:
//
//	base := awards.Search().WithFilter("agencies", nasa)
//	big := base.WithFilter("award_amounts", overTenMillion)
//	small := base.WithFilter("award_amounts", underOneMillion)
package query
