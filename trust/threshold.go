package trust

// verifyThreshold implements TUF threshold verification: iterate
// signatures, silently
// ignoring any whose key ID is not in the authorized set (per TUF,
// unrecognized signatures are not errors), verify each remaining one,
// count distinct verifying key IDs (duplicate signatures by the same key
// count once), and accept iff that count is at least threshold.
//
// A bad signature alongside a sufficient count of good ones is accepted: a
// single failing Verify call never aborts the loop.
func verifyThreshold(checker SignatureChecker, role string, payload []byte, sigs []Signature, keys map[KeyID]Key, authorized []KeyID, threshold int) error {
	authorizedSet := make(map[KeyID]struct{}, len(authorized))
	for _, id := range authorized {
		authorizedSet[id] = struct{}{}
	}

	verified := make(map[KeyID]struct{})
	for _, sig := range sigs {
		if _, ok := authorizedSet[sig.KeyID]; !ok {
			continue
		}
		key, ok := keys[sig.KeyID]
		if !ok {
			continue
		}
		if _, already := verified[sig.KeyID]; already {
			continue
		}
		if err := checker.Verify(key, payload, sig); err != nil {
			continue
		}
		verified[sig.KeyID] = struct{}{}
	}

	if len(verified) >= threshold {
		return nil
	}
	return &VerificationFailureError{Role: role, Got: len(verified), Need: threshold}
}

// validateRoleDef checks the structural invariant that a role definition's
// threshold is sane: a threshold of zero would accept unsigned metadata,
// and a threshold greater than the number of named keys can never be
// satisfied.
func validateRoleDef(def RoleDef) error {
	if def.Threshold < 1 {
		return &MalformedMetadataError{Reason: "role threshold must be at least 1"}
	}
	if def.Threshold > len(def.KeyIDs) {
		return &MalformedMetadataError{Reason: "role threshold exceeds number of authorized keys"}
	}
	return nil
}
