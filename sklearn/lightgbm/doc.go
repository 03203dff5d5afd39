// Package lightgbm implements histogram-based gradient boosted decision trees
// for multiclass classification, following LightGBM's training API.
//
// Features are bucketed into at most max_bin histogram bins per column.
// Each boosting round grows one tree per class on the softmax gradients,
// leaf-wise: the leaf with the largest split gain is split next until
// num_leaves is reached.
//
// # Basic Usage
//
//	train, _ := lightgbm.NewDataset(XTrain, yTrain)
//	valid, _ := lightgbm.NewDataset(XTest, yTest, lightgbm.WithReference(train))
//
//	params := map[string]any{
//	    "objective": "multiclass",
//	    "num_class": 3,
//	    "metric":    "multi_logloss",
//	}
//	booster, err := lightgbm.Train(params, train, 10, []*lightgbm.Dataset{valid},
//	    lightgbm.WithValidNames("valid"),
//	)
//	if err != nil {
//	    return err
//	}
//	proba, _ := booster.Predict(XTest) // (n_samples, 3), rows sum to 1
//
// # Parameters
//
// Parameters use LightGBM names and most common aliases (eta, num_classes,
// colsample_bytree, min_child_samples, reg_lambda, n_jobs, ...). Unknown
// names are logged and ignored. Supported: objective, boosting_type,
// num_class, metric (multi_logloss, multi_error), num_leaves, max_depth,
// min_data_in_leaf, min_sum_hessian_in_leaf, min_gain_to_split,
// learning_rate, lambda_l2, feature_fraction, feature_fraction_seed, max_bin,
// num_threads and verbosity.
//
// # Monitoring
//
// Every per-round metric is delivered to Observers as
// "<dataset>_<metric>" with a 1-based round, and to Callbacks as a
// CallbackEnv. RecordEvaluation, LogEvaluation and EarlyStopping are
// provided.
package lightgbm
