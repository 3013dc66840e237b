//go:build !js_eval

package stores

// NewJSEvaluator returns nil unless the module is built with -tags js_eval.
func NewJSEvaluator(...EvaluatorOption) Evaluator {
	return nil
}
