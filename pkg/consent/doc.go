// Package consent implements the two-phase gate around repair scripts.
//
// Phase one runs the diagnosis and shows only the diagnosis text. Phase two
// asks the user whether the proposed script should be produced. The script is
// returned or written only from the Approved state of the current diagnosis.
//
// States:
//
//	Idle -> Diagnosing -> Diagnosed            (no script proposed)
//	                   -> AwaitingApproval -> Approved <-> AwaitingApproval (Regenerate)
//	                                       -> Declined
//	Diagnosing -> Idle (Fail); any -> Idle (Reset); any but Diagnosing -> Diagnosing (Begin)
package consent
