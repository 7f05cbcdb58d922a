// Package corpus stores crawled documents on disk and keeps the resumable
// crawl checkpoint.
//
// Each document is written as doc_NNNNNNNN.txt, a small header followed by
// the body, plus doc_NNNNNNNN.meta.json with the same fields. The checkpoint
// .crawler_state.json records the last used ID and the visited URLs.
package corpus
