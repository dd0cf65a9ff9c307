package tuning

// tuningSchema rejects unknown top-level sections and out-of-range edges
// before the decoder runs, so a typo in the tuning file fails loudly instead
// of silently keeping a default.
const tuningSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "council": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "base_weights": {
          "type": "object",
          "additionalProperties": {"type": "number", "exclusiveMinimum": 0}
        },
        "default_weight": {"type": "number", "exclusiveMinimum": 0},
        "veto_thresholds": {
          "type": "object",
          "additionalProperties": {"type": "number", "minimum": -1, "maximum": 0}
        },
        "availability_floor": {"type": "number", "minimum": 0, "maximum": 1},
        "availability_penalty": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
        "alignment_boost": {"type": "number", "minimum": 1},
        "deadband": {"type": "number", "minimum": 0, "maximum": 0.5},
        "bands": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "aggressive_buy": {"type": "number", "minimum": -1, "maximum": 1},
            "accumulate": {"type": "number", "minimum": -1, "maximum": 1},
            "neutral_floor": {"type": "number", "minimum": -1, "maximum": 1},
            "trim_floor": {"type": "number", "minimum": -1, "maximum": 1}
          }
        }
      }
    },
    "pattern": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "min_severity": {"type": "number", "minimum": 0, "maximum": 1},
        "deep_value": {"type": "object"},
        "bull_trap": {"type": "object"},
        "momentum_run": {"type": "object"},
        "capitulation": {"type": "object"},
        "distribution_top": {"type": "object"},
        "macro_divergence": {"type": "object"}
      }
    },
    "plan": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "first_target_pct": {"type": "number", "exclusiveMinimum": 0},
        "stretch_target_pct": {"type": "number", "exclusiveMinimum": 0},
        "stop_loss_pct": {"type": "number", "exclusiveMinimum": 0},
        "hard_floor_pct": {"type": "number", "exclusiveMinimum": 0},
        "thesis_days": {"type": "integer", "minimum": 1},
        "review_days": {"type": "integer", "minimum": 1}
      }
    },
    "delta": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "price_pct": {"$ref": "#/$defs/edges"},
        "technical": {"$ref": "#/$defs/edges"},
        "action": {"$ref": "#/$defs/edges"},
        "momentum": {"$ref": "#/$defs/edges"}
      }
    },
    "risk": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "concentration_limit": {"type": "number", "minimum": 0, "maximum": 1},
        "cash_floor": {"type": "number", "minimum": 0, "maximum": 1},
        "concentration_penalty": {"type": "number", "minimum": 0},
        "cash_penalty": {"type": "number", "minimum": 0},
        "critical_delta_penalty": {"type": "number", "minimum": 0},
        "uncovered_penalty": {"type": "number", "minimum": 0},
        "healthy_floor": {"type": "number", "minimum": 0, "maximum": 100},
        "warning_floor": {"type": "number", "minimum": 0, "maximum": 100}
      }
    }
  },
  "$defs": {
    "edges": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "medium": {"type": "number", "exclusiveMinimum": 0},
        "high": {"type": "number", "exclusiveMinimum": 0},
        "critical": {"type": "number", "exclusiveMinimum": 0}
      }
    }
  }
}`
