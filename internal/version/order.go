package version

// Compare implements the total order used for "best version" selection
// and conflict recommendations between two Versions sharing a work id.
// It returns a negative number if a ranks below b, a positive number if a
// ranks above b, and zero if they are equal under this order.
//
// The order is only meaningful between Versions sharing a work id; it is
// defined unconditionally here (the caller is responsible for only
// comparing same-work-id versions, exactly as with the cache's
// get_best_for_work_id query).
func Compare(a, b Version) int {
	// Step 1: deletion-notice detection, applied symmetrically.
	aIsNotice := looksLikeDeletionNotice(a, b)
	bIsNotice := looksLikeDeletionNotice(b, a)
	if aIsNotice && !bIsNotice {
		return -1
	}
	if bIsNotice && !aIsNotice {
		return 1
	}
	// Both or neither trigger: defer to step 2.

	// Step 2: last_modified, later wins.
	if !a.LastModified.Equal(b.LastModified) {
		if a.LastModified.After(b.LastModified) {
			return 1
		}
		return -1
	}

	// Step 3: words, higher wins.
	if a.Words != b.Words {
		if a.Words > b.Words {
			return 1
		}
		return -1
	}

	// Step 4: chapters written, higher wins.
	if a.Chapters.Written != b.Chapters.Written {
		if a.Chapters.Written > b.Chapters.Written {
			return 1
		}
		return -1
	}

	// Step 5: published, later wins.
	if !a.Published.Equal(b.Published) {
		if a.Published.After(b.Published) {
			return 1
		}
		return -1
	}

	// Step 6: otherwise equal.
	return 0
}

// looksLikeDeletionNotice reports whether candidate appears to be a
// deletion notice relative to reference: less than 50% of reference's
// written-chapter count, and less than 20% of reference's decompressed
// content length.
func looksLikeDeletionNotice(candidate, reference Version) bool {
	if reference.Chapters.Written == 0 || reference.Length == 0 {
		return false
	}
	chapterRatio := float64(candidate.Chapters.Written) / float64(reference.Chapters.Written)
	lengthRatio := float64(candidate.Length) / float64(reference.Length)
	return chapterRatio < 0.5 && lengthRatio < 0.2
}

// Best returns the highest-ranked Version among versions under Compare.
// It panics if versions is empty; callers should check length first.
func Best(versions []Version) Version {
	best := versions[0]
	for _, v := range versions[1:] {
		if Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}
