package document

// Status is the pipeline state token for a document. It is the sole driver of
// which transition applies on the next sweep.
type Status string

const (
	StatusPublicBucket     Status = "public_bucket"
	StatusPrivateBucket    Status = "private_bucket"
	StatusScraping         Status = "scraping"
	StatusOCR              Status = "ocr"
	StatusOCRDone          Status = "ocr_done"
	StatusDecorating       Status = "decorating"
	StatusDecoratingDone   Status = "decorating_done"
	StatusQueuedForRetrain Status = "queued_for_retrain"
	StatusTraining         Status = "training"
	StatusTrainingDone     Status = "training_done"
	StatusDone             Status = "done"
	StatusError            Status = "error"
)

// Bucket identifies which storage tier a document's object lives in.
type Bucket string

const (
	BucketPublic  Bucket = "public"
	BucketPrivate Bucket = "private"
)

// statusProps associates each status with its terminality and the bucket the
// document's raw object is expected to live in while in that status.
var statusProps = map[Status]struct {
	terminal bool
	bucket   Bucket
}{
	StatusPublicBucket:     {terminal: true, bucket: BucketPublic},
	StatusPrivateBucket:    {terminal: false, bucket: BucketPrivate},
	StatusScraping:         {terminal: false, bucket: BucketPublic},
	StatusOCR:              {terminal: false, bucket: BucketPrivate},
	StatusOCRDone:          {terminal: false, bucket: BucketPrivate},
	StatusDecorating:       {terminal: false, bucket: BucketPrivate},
	StatusDecoratingDone:   {terminal: false, bucket: BucketPrivate},
	StatusQueuedForRetrain: {terminal: false, bucket: BucketPrivate},
	StatusTraining:         {terminal: false, bucket: BucketPrivate},
	StatusTrainingDone:     {terminal: true, bucket: BucketPrivate},
	StatusDone:             {terminal: true, bucket: BucketPrivate},
	StatusError:            {terminal: true, bucket: BucketPrivate},
}

// Valid reports whether s is a known status token.
func (s Status) Valid() bool {
	_, ok := statusProps[s]
	return ok
}

// Terminal reports whether the sweep performs no further automatic action
// for a document in this status. PublicBucket is terminal for Site-sourced
// documents only; callers that care about the Blob entry point must check
// the source as well (see Document.Advanceable).
func (s Status) Terminal() bool {
	p, ok := statusProps[s]
	return ok && p.terminal
}

// Bucket returns the storage tier associated with this status.
// Unknown statuses map to the private bucket.
func (s Status) Bucket() Bucket {
	if p, ok := statusProps[s]; ok {
		return p.bucket
	}
	return BucketPrivate
}

// Statuses returns all known status tokens.
func Statuses() []Status {
	return []Status{
		StatusPublicBucket,
		StatusPrivateBucket,
		StatusScraping,
		StatusOCR,
		StatusOCRDone,
		StatusDecorating,
		StatusDecoratingDone,
		StatusQueuedForRetrain,
		StatusTraining,
		StatusTrainingDone,
		StatusDone,
		StatusError,
	}
}
