package guardian

// DefaultRules returns a fresh copy of the built-in catalog. Patterns are
// written case-insensitive so they match both raw and folded text.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, 49)
	rules = append(rules, instructionOverrideRules()...)
	rules = append(rules, roleManipulationRules()...)
	rules = append(rules, systemPromptExtractionRules()...)
	rules = append(rules, encodingEvasionRules()...)
	rules = append(rules, delimiterInjectionRules()...)
	rules = append(rules, contextManipulationRules()...)
	rules = append(rules, outputManipulationRules()...)
	rules = append(rules, toolAbuseRules()...)
	return rules
}

// ---------------------------------------------------------------------------
// Instruction override
// ---------------------------------------------------------------------------

func instructionOverrideRules() []Rule {
	c := CategoryInstructionOverride
	return []Rule{
		{
			ID:          "io_ignore_previous",
			Category:    c,
			Pattern:     `(?i)\b(ignore|disregard|skip)\s+(all\s+|any\s+|the\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|rules?|directions?|prompts?|guidelines?)`,
			Weight:      0.45,
			Description: "Instruction override language (e.g., 'ignore previous instructions')",
		},
		{
			ID:          "io_forget_instructions",
			Category:    c,
			Pattern:     `(?i)\bforget\s+(all\s+|everything\s+)?(your|the|previous|prior)\s+(previous\s+)?(instructions?|rules?|training|guidelines?)`,
			Weight:      0.40,
			Description: "Asks the model to forget its instructions",
		},
		{
			ID:          "io_new_instructions",
			Category:    c,
			Pattern:     `(?i)\b(new|updated|revised|real)\s+instructions?\s*:`,
			Weight:      0.30,
			Description: "Introduces a replacement instruction block",
		},
		{
			ID:          "io_override_rules",
			Category:    c,
			Pattern:     `(?i)\b(override|bypass|disable|circumvent)\s+(all\s+|your\s+|the\s+|any\s+)?((safety|security|content)\s+)?(rules?|filters?|guidelines?|restrictions?|protocols?|guardrails?)`,
			Weight:      0.40,
			Description: "Attempts to disable safety rules or filters",
		},
		{
			ID:          "io_from_now_on",
			Category:    c,
			Pattern:     `(?i)\bfrom\s+now\s+on,?\s+(you\s+(will|must|are)|ignore|only|always|never)\b`,
			Weight:      0.20,
			Description: "Redefines behavior for the rest of the conversation",
		},
		{
			ID:          "io_do_not_follow",
			Category:    c,
			Pattern:     `(?i)\b(do\s+not|don't|stop)\s+follow(ing)?\s+(your|the|any)\s+(previous\s+|original\s+)?(instructions?|rules?|guidelines?)`,
			Weight:      0.40,
			Description: "Tells the model to stop following its instructions",
		},
	}
}

// ---------------------------------------------------------------------------
// Role manipulation
// ---------------------------------------------------------------------------

func roleManipulationRules() []Rule {
	c := CategoryRoleManipulation
	return []Rule{
		{
			ID:          "rm_you_are_now",
			Category:    c,
			Pattern:     `(?i)\byou\s+are\s+now\s+(a|an|the|my|in|free|unrestricted|unfiltered|uncensored|jailbroken)\b`,
			Weight:      0.30,
			Description: "Reassigns the model's identity ('you are now ...')",
		},
		{
			ID:          "rm_pretend",
			Category:    c,
			Pattern:     `(?i)\b(pretend|imagine)\s+(to\s+be|you\s+are|that\s+you\s+are)\b`,
			Weight:      0.20,
			Description: "Asks the model to pretend to be something else",
		},
		{
			ID:          "rm_act_as_unrestricted",
			Category:    c,
			Pattern:     `(?i)\b(act|behave|respond)\s+as\s+(if\s+you\s+(are|were)\s+)?(an?\s+)?(unrestricted|unfiltered|uncensored|evil|jailbroken)\b`,
			Weight:      0.30,
			Description: "Asks the model to act without restrictions",
		},
		{
			ID:          "rm_jailbreak_persona",
			Category:    c,
			Pattern:     `(?i)\b(do\s+anything\s+now|developer\s+mode\s+(enabled|on)|jailbr(ea|o)k(en|ed)?|god\s+mode)\b`,
			Weight:      0.35,
			Description: "Known jailbreak persona or mode",
		},
		{
			ID:          "rm_no_restrictions",
			Category:    c,
			Pattern:     `(?i)\b(without|free\s+from)\s+(any\s+)?(restrictions?|limitations?|filters?|censorship)\b`,
			Weight:      0.12,
			Description: "Requests output free of restrictions",
		},
		{
			ID:          "rm_privileged_role",
			Category:    c,
			Pattern:     `(?i)\b(role-?play|act)\s+as\s+(the\s+)?(system|admin|administrator|root|superuser)\b`,
			Weight:      0.30,
			Description: "Assigns the model a privileged role",
		},
	}
}

// ---------------------------------------------------------------------------
// System-prompt extraction
// ---------------------------------------------------------------------------

func systemPromptExtractionRules() []Rule {
	c := CategorySystemPromptExtraction
	return []Rule{
		{
			ID:          "sp_reveal_prompt",
			Category:    c,
			Pattern:     `(?i)\b(reveal|show|display|print|output|repeat|tell\s+me|give\s+me|leak)\s+(me\s+)?(your|the)\s+(system\s+|initial\s+|original\s+|hidden\s+|secret\s+)?prompt\b`,
			Weight:      0.35,
			Description: "Attempts to reveal the system prompt",
		},
		{
			ID:          "sp_reveal_instructions",
			Category:    c,
			Pattern:     `(?i)\b(reveal|show|print|output|repeat|leak)\s+(me\s+)?your\s+(system\s+|initial\s+|original\s+|hidden\s+)?(instructions|rules|guidelines)`,
			Weight:      0.30,
			Description: "Attempts to reveal the model's instructions",
		},
		{
			ID:          "sp_what_are_instructions",
			Category:    c,
			Pattern:     `(?i)\bwhat\s+(are|were)\s+your\s+(system\s+|initial\s+|original\s+)?(instructions|rules|guidelines|directives)\b`,
			Weight:      0.25,
			Description: "Asks what the model's instructions are",
		},
		{
			ID:          "sp_verbatim",
			Category:    c,
			Pattern:     `(?i)\b(verbatim|word\s+for\s+word)\b.{0,40}\b(prompt|instructions|above)\b`,
			Weight:      0.30,
			Description: "Requests a verbatim copy of prior context",
		},
		{
			ID:          "sp_text_above",
			Category:    c,
			Pattern:     `(?i)\b(repeat|print|output)\s+(everything|all|the\s+text|the\s+words)\s+(above|before)\b`,
			Weight:      0.30,
			Description: "Requests the text preceding the user message",
		},
		{
			ID:          "sp_first_line",
			Category:    c,
			Pattern:     `(?i)\b(first|initial)\s+(line|sentence|words?)\s+of\s+(your|the)\s+(system\s+)?prompt\b`,
			Weight:      0.30,
			Description: "Probes for the beginning of the system prompt",
		},
	}
}

// ---------------------------------------------------------------------------
// Encoding evasion
// ---------------------------------------------------------------------------

func encodingEvasionRules() []Rule {
	c := CategoryEncodingEvasion
	return []Rule{
		{
			ID:          "ee_decode_and_execute",
			Category:    c,
			Pattern:     `(?i)\b(decode|decrypt|deobfuscate)\s+(this|the\s+following)\b.{0,40}\b(execute|run|follow|obey)\b`,
			Weight:      0.30,
			Description: "Asks the model to decode and act on a payload",
		},
		{
			ID:          "ee_base64_blob",
			Category:    c,
			Pattern:     `[A-Za-z0-9+/]{40,}={0,2}`,
			Weight:      0.15,
			Description: "Long base64-like payload",
		},
		{
			ID:          "ee_hex_escapes",
			Category:    c,
			Pattern:     `(\\x[0-9a-fA-F]{2}){4,}`,
			Weight:      0.20,
			Description: "Run of hex escape sequences",
		},
		{
			ID:          "ee_unicode_escapes",
			Category:    c,
			Pattern:     `(\\u[0-9a-fA-F]{4}){3,}`,
			Weight:      0.20,
			Description: "Run of unicode escape sequences",
		},
		{
			ID:          "ee_cipher",
			Category:    c,
			Pattern:     `(?i)\b(rot-?13|caesar\s+cipher|reverse\s+the\s+(text|string|letters))\b`,
			Weight:      0.15,
			Description: "Mentions a simple cipher used to hide instructions",
		},
		{
			ID:          "ee_spaced_keyword",
			Category:    c,
			Pattern:     `(?i)\b(i[\s._-]g[\s._-]n[\s._-]o[\s._-]r[\s._-]e|s[\s._-]y[\s._-]s[\s._-]t[\s._-]e[\s._-]m)\b`,
			Weight:      0.30,
			Description: "Keyword split by separators to avoid matching",
		},
		{
			ID:          "ee_url_encoded",
			Category:    c,
			Pattern:     `(%[0-9a-fA-F]{2}){6,}`,
			Weight:      0.15,
			Description: "Run of percent-encoded bytes",
		},
	}
}

// ---------------------------------------------------------------------------
// Delimiter and role-marker injection
// ---------------------------------------------------------------------------

func delimiterInjectionRules() []Rule {
	c := CategoryDelimiterInjection
	return []Rule{
		{
			ID:          "di_chatml_token",
			Category:    c,
			Pattern:     `(?i)<\|(im_start|im_end|system|endoftext|eot_id|start_header_id)\|>`,
			Weight:      0.45,
			Description: "Chat template control token",
		},
		{
			ID:          "di_inst_tags",
			Category:    c,
			Pattern:     `(?i)\[/?(inst|sys)\]|<<\s*/?sys\s*>>`,
			Weight:      0.40,
			Description: "Instruction-tuning delimiter tags",
		},
		{
			ID:          "di_role_prefix",
			Category:    c,
			Pattern:     `(?im)^\s*(system|assistant|developer)\s*:`,
			Weight:      0.25,
			Description: "Line starts with a conversation role prefix",
		},
		{
			ID:          "di_fake_boundary",
			Category:    c,
			Pattern:     `(?i)(-{3,}|={3,}|#{3,})\s*(end\s+of\s+(system\s+)?(prompt|instructions|context)|begin\s+(new\s+)?(system\s+)?(prompt|instructions))`,
			Weight:      0.35,
			Description: "Fake prompt boundary marker",
		},
		{
			ID:          "di_xml_role_tags",
			Category:    c,
			Pattern:     `(?i)</?(system|instructions?|admin|developer_message)>`,
			Weight:      0.30,
			Description: "XML-style role tags",
		},
		{
			ID:          "di_hidden_block",
			Category:    c,
			Pattern:     `(?i)\bbegin\s+hidden\s+instructions?\b`,
			Weight:      0.40,
			Description: "Declares a hidden instruction block",
		},
	}
}

// ---------------------------------------------------------------------------
// Context manipulation
// ---------------------------------------------------------------------------

func contextManipulationRules() []Rule {
	c := CategoryContextManipulation
	return []Rule{
		{
			ID:          "cm_fictional_frame",
			Category:    c,
			Pattern:     `(?i)\b(hypothetically|in\s+a\s+fictional\s+world|purely\s+fictional)\b.{0,60}\b(how\s+to|explain|instructions?)\b`,
			Weight:      0.15,
			Description: "Fictional framing wrapped around a request",
		},
		{
			ID:          "cm_false_authority",
			Category:    c,
			Pattern:     `(?i)\b(i\s+am|i'm|this\s+is)\s+(your|the|an?)\s+(developer|creator|administrator|admin|owner)\b`,
			Weight:      0.25,
			Description: "Claims authority over the model",
		},
		{
			ID:          "cm_urgency_override",
			Category:    c,
			Pattern:     `(?i)\b(urgent|emergency|life\s+or\s+death)\b.{0,40}\b(ignore|bypass|override)\b`,
			Weight:      0.15,
			Description: "Uses urgency to justify an override",
		},
		{
			ID:          "cm_special_mode",
			Category:    c,
			Pattern:     `(?i)\b(test(ing)?|debug|maintenance|admin)\s+mode\s+(is\s+)?(enabled|activated|on)\b`,
			Weight:      0.30,
			Description: "Claims a special operating mode is active",
		},
		{
			ID:          "cm_important_override",
			Category:    c,
			Pattern:     `(?i)\b(important|attention|note)\s*:\s*(ignore|disregard|override|forget)\b`,
			Weight:      0.35,
			Description: "Flagged notice that carries an override",
		},
		{
			ID:          "cm_dismiss_context",
			Category:    c,
			Pattern:     `(?i)\b(previous|above|prior)\s+(conversation|context|text|messages?)\s+(was|were|is)\s+(just\s+)?(a\s+)?(test|fake|irrelevant|over)\b`,
			Weight:      0.30,
			Description: "Dismisses earlier context as void",
		},
	}
}

// ---------------------------------------------------------------------------
// Output manipulation
// ---------------------------------------------------------------------------

func outputManipulationRules() []Rule {
	c := CategoryOutputManipulation
	return []Rule{
		{
			ID:          "om_respond_only",
			Category:    c,
			Pattern:     `(?i)\b(respond|reply|answer)\s+only\s+with\b`,
			Weight:      0.10,
			Description: "Constrains output format",
		},
		{
			ID:          "om_no_disclaimers",
			Category:    c,
			Pattern:     `(?i)\b(do\s+not|don't|never)\s+(include|add|give|mention)\s+(any\s+)?(warnings?|disclaimers?|caveats?|refusals?)\b`,
			Weight:      0.20,
			Description: "Suppresses warnings or disclaimers",
		},
		{
			ID:          "om_never_refuse",
			Category:    c,
			Pattern:     `(?i)\b(never|do\s+not|don't)\s+(refuse|decline|say\s+no)\b`,
			Weight:      0.25,
			Description: "Forbids refusals",
		},
		{
			ID:          "om_say_exactly",
			Category:    c,
			Pattern:     `(?i)\b(say|print|output|write)\s+exactly\s*:?\s*["']`,
			Weight:      0.15,
			Description: "Dictates exact output text",
		},
		{
			ID:          "om_markdown_image_exfil",
			Category:    c,
			Pattern:     `(?i)!\[[^\]]*\]\(https?://[^)\s]*\?[^)\s]*=`,
			Weight:      0.35,
			Description: "Markdown image with query parameters (render-time exfiltration)",
		},
		{
			ID:          "om_hide_from_user",
			Category:    c,
			Pattern:     `(?i)\b(hide|conceal)\s+(this|these|the)\s+(instructions?|text|message)\s+from\s+(the\s+)?user\b`,
			Weight:      0.35,
			Description: "Asks to hide instructions from the user",
		},
	}
}

// ---------------------------------------------------------------------------
// Tool abuse
// ---------------------------------------------------------------------------

func toolAbuseRules() []Rule {
	c := CategoryToolAbuse
	return []Rule{
		{
			ID:          "ta_execute_command",
			Category:    c,
			Pattern:     `(?i)\b(execute|run)\s+(this|the\s+following)\s+(shell\s+|bash\s+|system\s+)?(command|code|script)\b`,
			Weight:      0.20,
			Description: "Asks the model to execute a command",
		},
		{
			ID:          "ta_destructive_tool_call",
			Category:    c,
			Pattern:     `(?i)\b(call|invoke|use)\s+the\s+\w+\s+(tool|function)\b.{0,40}\b(delete|drop|transfer|exfiltrate)\b`,
			Weight:      0.30,
			Description: "Directs a tool call toward a destructive action",
		},
		{
			ID:          "ta_exfiltrate_data",
			Category:    c,
			Pattern:     `(?i)\b(send|post|upload|exfiltrate|forward|email)\s+(all\s+|the\s+|this\s+)?(data|conversation|credentials|secrets?|api\s+keys?|passwords?|chat\s+history)\s+to\b`,
			Weight:      0.35,
			Description: "Asks to send sensitive data to a destination",
		},
		{
			ID:          "ta_destructive_command",
			Category:    c,
			Pattern:     `(?i)\brm\s+-[a-z]*r[a-z]*f|\bdrop\s+(table|database)\b`,
			Weight:      0.30,
			Description: "Destructive shell or SQL command",
		},
		{
			ID:          "ta_pipe_to_shell",
			Category:    c,
			Pattern:     `(?i)\b(curl|wget)\b[^|\n]*\|\s*(ba|z)?sh\b`,
			Weight:      0.35,
			Description: "Downloads and pipes a script into a shell",
		},
		{
			ID:          "ta_dump_secrets",
			Category:    c,
			Pattern:     `(?i)\b(print|cat|echo|dump|reveal)\s+.{0,20}(\.env\b|environment\s+variables?|api[_\s]?keys?|/etc/passwd|id_rsa)`,
			Weight:      0.30,
			Description: "Requests secrets or credential files",
		},
	}
}
