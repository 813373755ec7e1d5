// Package resources contains the USAspending resources built on the query core.
//
// Awards is the reference resource:
//
//	awards := resources.NewAwards(c, logger)
//
//	n, err := awards.Search().Contracts().ForFiscalYear(2024).Count(ctx)
//
//	for award, err := range awards.Search().Grants().WithKeywords("mars").Limit(20).Records(ctx) {
//		...
//	}
//
//	award, err := awards.Get(ctx, "CONT_AWD_NNG16PA00C_8000_-NONE-_-NONE-")
//	desc, err := award.Description(ctx)
//
// Search rows carry a subset of an award's fields. Accessors fall back to the
// award detail document, which is loaded once on first need through the
// client session the award came from.
package resources
