// Package pagination walks paginated USAspending search endpoints one page at a time.
//
// The Engine drives a small state machine per run:
//
//	START -> FETCH_PAGE -> HAS_MORE -> FETCH_PAGE ...
//	                    -> EXHAUSTED -> DONE
//	                    -> LIMIT_REACHED -> DONE
//
// Every page goes through a Doer (normally *client.Client), so caching, rate
// limiting and retries apply per page. Pages are fetched strictly in cursor
// order and a failed page fails the whole run.
//
// The position within the result set is described by a Cursor. Three are provided:
//
//   - PageCursor: "page" and "limit" (the USAspending default)
//   - OffsetCursor: "offset" and "limit"
//   - TokenCursor: "last_record_unique_id" and "last_record_sort_value" taken
//     from the previous page's page_metadata
//
// Example usage:
//
//	engine := pagination.NewEngine(c, logger)
//	plan := pagination.Plan{
//		Endpoint: "/search/spending_by_award/",
//		Payload:  payload,
//		Limit:    150,
//	}
//	for rec, err := range engine.Records(ctx, plan) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(string(rec))
//	}
//
// With a page size of 100 the run above issues two requests and stops as soon
// as the 150th record is emitted.
package pagination
