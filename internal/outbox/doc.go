// Package outbox publishes entity mutation events to Kafka and runs
// the index sync listener that replays them against the search index.
//
// # Components
//
//   - Publisher: writes domain.MutationEvent messages keyed by entity
//     id so per-entity ordering holds across partitions
//   - Listener: consumer loop that applies mutations to the index,
//     committing offsets after each handled message
//   - Fanout: a directory Indexer that performs the direct index call
//     and emits the matching mutation event
//   - ModerationNotifier: a directory Notifier backed by the broker
//
// # Event Types
//
//   - directory.record_published: a record entered PUBLISHED status
//   - directory.record_retracted: a published record left PUBLISHED
//   - directory.record_deleted: a record was removed
//   - directory.moderation_pending: a record awaits staff review
//   - article.upserted: a promoted article was created or updated
package outbox
