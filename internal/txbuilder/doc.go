package txbuilder

// Usage example (not compiled):
//
//  auto, err := txbuilder.NewAutoBuilderFromConfig(client, session.ChainID(), cfg)
//  if err != nil { ... }
//
//  path := []common.Address{dex.WrappedNative, output}
//  tx, err := auto.BuildSwapExactETHForTokensTx(ctx, from, dex.Router, path, amountIn, minOut, nil)
//  // sign with the session signer, then SendTransaction
//
