// Package disburse splits one attached payment evenly over a set of
// recipients and pays all of them in parallel.
//
// An invocation runs through a fixed pipeline:
//
//  1. Normalize the recipients (deduplicate, sort) and validate the request.
//  2. Reserve gas for every step that will follow; fail closed if the
//     prepaid allowance cannot cover them.
//  3. Split the deposit into equal integer slices. The remainder stays on
//     the operating account.
//  4. Build a continuation chain: one parallel stage of transfers, then
//     refund_unpaid, then report_payment.
//  5. Execute the chain. Each stage is a join barrier; a failed transfer is
//     a settled outcome, not an abort.
//  6. refund_unpaid returns failures*slice to the signer in one transfer.
//  7. report_payment returns the slice.
//
// Any error before step 5 aborts the invocation with an *AbortError and no
// funds move. After that the Engine always returns a Receipt.
//
// Recipients can be given directly (Engine.PayOut) or looked up in a
// Directory (Engine.PayFromDirectory). The ledger and directory packages
// provide in-memory implementations of the host side.
package disburse
